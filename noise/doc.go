// Package noise implements the Noise_NN_25519_ChaChaPoly_BLAKE2s handshake
// pattern over the formally verified flynn/noise library.
//
// NN has no static keys of its own: the relay and every peer-to-peer
// channel authenticate at the application layer instead, by binding the
// long-term public key carried in PublicKeys to the channel once it reaches
// the transport state. This mirrors how Noise_NN is typically paired with
// an out-of-band identity exchange (the meeting-point service, §4.3 of the
// design) rather than baking identity into the handshake pattern itself.
//
// Message flow (2 messages, no prior key knowledge needed):
//
//	Initiator                Responder
//	─────────                ─────────
//	-> e
//	                         <- e, ee
//	[transport state established on both sides]
//
// Example usage:
//
//	hs, _ := noise.New(noise.Initiator)
//	msg1, _, _ := hs.WriteMessage(nil)
//	// send msg1, receive msg2 from peer
//	_, complete, _ := hs.ReadMessage(msg2)
//	if complete {
//	    transport, _ := hs.Transport()
//	    ciphertext, _ := transport.Encrypt(plaintext)
//	}
//
// Keypairs used to identify parties (independent of the handshake) are
// PEM-encoded with EncodeKeypairPEM/DecodeKeypairPEM, public block first.
package noise
