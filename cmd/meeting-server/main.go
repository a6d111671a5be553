package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/opd-ai/threshold-relay/config"
	"github.com/opd-ai/threshold-relay/relay"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "meeting-server",
	Short: "Meeting-point room service for key exchange before a relay session",
}

var (
	flagBind   string
	flagConfig string
)

func init() {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Run the meeting server",
		RunE:  runStart,
	}
	startCmd.Flags().StringVar(&flagBind, "bind", "", "address to listen on (overrides config)")
	startCmd.Flags().StringVar(&flagConfig, "config", "/etc/threshold-relay/meeting.yaml", "path to meeting config file")

	rootCmd.AddCommand(startCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("meeting-server: exiting")
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadMeetingConfig(flagConfig)
	if err != nil {
		return err
	}
	if flagBind != "" {
		cfg.Bind = flagBind
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}

	// Meeting rooms share the same relay.Server machinery: a meeting-only
	// deployment never creates sessions, but the connection registry and
	// reaper are identical.
	server := relay.NewServer(cfg.Session.IntervalDuration(), cfg.Session.TimeoutDuration())
	server.Run()
	defer server.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/", server.ServeHTTP)
	httpServer := &http.Server{Addr: cfg.Bind, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{"bind": cfg.Bind}).Info("meeting-server: listening")
		errCh <- httpServer.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("meeting-server: serve: %w", err)
		}
	case <-sig:
		logrus.Info("meeting-server: shutting down")
	}

	return httpServer.Close()
}
