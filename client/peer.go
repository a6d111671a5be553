package client

import (
	"fmt"
	"sync"

	"github.com/opd-ai/threshold-relay/noise"
)

// peerChannel is one party's Noise_NN handshake/transport state plus an
// outbound queue, keyed by the peer's long-term static key. A party opens
// exactly one of these per peer regardless of how many sessions it shares
// with them.
type peerChannel struct {
	peerKey []byte

	mu        sync.Mutex
	handshake *noise.Handshake
	transport *noise.Transport
}

func newPeerChannel(peerKey []byte, role noise.Role) (*peerChannel, error) {
	hs, err := noise.New(role)
	if err != nil {
		return nil, fmt.Errorf("client: new peer handshake: %w", err)
	}
	return &peerChannel{peerKey: peerKey, handshake: hs}, nil
}

func (p *peerChannel) established() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transport != nil
}

func (p *peerChannel) complete() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	transport, err := p.handshake.Transport()
	if err != nil {
		return err
	}
	p.transport = transport
	p.handshake = nil
	return nil
}

func (p *peerChannel) encrypt(plaintext []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.transport == nil {
		return nil, noise.ErrNotTransportState
	}
	return p.transport.Encrypt(plaintext)
}

func (p *peerChannel) decrypt(ciphertext []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.transport == nil {
		return nil, noise.ErrNotTransportState
	}
	return p.transport.Decrypt(ciphertext)
}

// peerRegistry is the client's mutex-guarded table of peerChannels, one per
// long-term public key the party has connected to.
type peerRegistry struct {
	mu    sync.RWMutex
	peers map[string]*peerChannel
}

func newPeerRegistry() *peerRegistry {
	return &peerRegistry{peers: make(map[string]*peerChannel)}
}

func (r *peerRegistry) getOrCreate(peerKey []byte, role noise.Role) (*peerChannel, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.peers[string(peerKey)]; ok {
		return existing, false, nil
	}
	pc, err := newPeerChannel(peerKey, role)
	if err != nil {
		return nil, false, err
	}
	r.peers[string(peerKey)] = pc
	return pc, true, nil
}

func (r *peerRegistry) get(peerKey []byte) (*peerChannel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pc, ok := r.peers[string(peerKey)]
	return pc, ok
}
