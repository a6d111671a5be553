// Package thresholdrelay is the root of a threshold-signature coordination
// platform: a Noise-protocol relay that brokers end-to-end-encrypted
// traffic between geographically distributed parties, a meeting-point
// service that lets parties discover one another by exchanging public keys
// under a shared secret identifier, and a round-based protocol driver
// framework that bridges the relay to MPC ceremonies (CGGMP ECDSA, FROST
// Ed25519 / secp256k1-Taproot) without ever reconstructing a private key.
//
// # Packages
//
// The system is organized leaves-first:
//
//   - [wire]: binary frame format, tagged envelopes, and the
//     session/meeting/round message taxonomy carried inside them.
//   - [crypto]: the long-term Curve25519 identity keypair used to
//     authenticate Noise channels.
//   - [noise]: the Noise_NN_25519_ChaChaPoly_BLAKE2s handshake and
//     transport encryption for both the relay channel and every
//     peer-to-peer channel.
//   - [relay]: the server core — connection registry, session and
//     meeting-room lifecycle, routing of opaque peer-to-peer ciphertext,
//     and periodic reaping of idle sessions/rooms.
//   - [client]: the party-side transport and event loop that drives
//     parallel Noise sessions with the relay and every peer.
//   - [driver]: the bridge between a client's transport and a
//     cryptographic ProtocolDriver: round buffering, ordered delivery, and
//     session setup. Subpackages driver/cggmp and driver/frost adapt two
//     toy threshold schemes to the same contract.
//   - config: YAML configuration loading for the relay and meeting-point
//     servers.
//   - cmd/relay-server, cmd/meeting-server: the deployable binaries.
//
// A party never persists key shares, is never authenticated beyond its
// long-term public key, and cannot recover a ceremony's state across a
// relay restart — the relay sees ciphertext only and routes it blind.
package thresholdrelay
