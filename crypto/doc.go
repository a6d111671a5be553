// Package crypto provides the long-term static identity keypair used to
// authenticate Noise channels.
//
// Every party in the platform holds one Curve25519 [KeyPair]: its public
// half is the value carried as PublicKeys.public_key across the meeting
// and relay wire protocols and is announced to the relay as the payload of
// the first handshake message. The Noise_NN pattern (noise.New) uses no
// static keys, so the private half is not fed into the handshake. Key
// material should be wiped with
// [SecureWipe] once a handshake or ceremony no longer needs it.
package crypto
