package relay

import (
	"time"

	"github.com/opd-ai/threshold-relay/wire"
	"github.com/sirupsen/logrus"
)

// Reaper periodically expires sessions and meeting rooms past their
// timeout, mirroring the session/nonce cleanup goroutines that run
// alongside a long-lived connection table.
type Reaper struct {
	sessions *SessionManager
	meetings *MeetingManager
	interval time.Duration
	timeout  time.Duration

	onSessionExpired func(sessionID wire.SessionId)
	stop             chan struct{}
}

// NewReaper builds a reaper that checks every interval and expires entries
// idle for longer than timeout.
func NewReaper(sessions *SessionManager, meetings *MeetingManager, interval, timeout time.Duration) *Reaper {
	return &Reaper{
		sessions: sessions,
		meetings: meetings,
		interval: interval,
		timeout:  timeout,
		stop:     make(chan struct{}),
	}
}

// OnSessionExpired registers a callback invoked (outside any lock) for each
// session id reaped for timeout, so the caller can broadcast
// SessionFinished{timed_out: true} to its participants.
func (r *Reaper) OnSessionExpired(fn func(sessionID wire.SessionId)) {
	r.onSessionExpired = fn
}

// Run blocks, reaping on every tick until Stop is called. Intended to run
// in its own goroutine.
func (r *Reaper) Run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.reapOnce()
		}
	}
}

func (r *Reaper) reapOnce() {
	now := time.Now()
	expiredSessions := r.sessions.ReapExpired(now, r.timeout)
	for _, id := range expiredSessions {
		logrus.WithFields(logrus.Fields{"session_id": id}).Info("relay: session reaped for timeout")
		if r.onSessionExpired != nil {
			r.onSessionExpired(id)
		}
	}
	expiredRooms := r.meetings.ReapExpired(now, r.timeout)
	for _, id := range expiredRooms {
		logrus.WithFields(logrus.Fields{"meeting_id": id}).Debug("relay: meeting room reaped for timeout")
	}
}

// Stop terminates the reaper's goroutine.
func (r *Reaper) Stop() {
	close(r.stop)
}
