// Package cryptoutils binds protocol callers to secp256k1 keys.
//
// Mutating requests carry four headers:
//
//	X-Caller-Address:   0x-prefixed address of the caller
//	X-Caller-Timestamp: unix seconds at signing time
//	X-Caller-Nonce:     unique per request, at most 64 bytes
//	X-Caller-Signature: 65-byte personal-message signature, hex encoded
//
// The signature covers
//
//	METHOD "\n" PATH "\n" TIMESTAMP "\n" NONCE "\n" hex(keccak256(body))
//
// wrapped with the Ethereum signed-message prefix (accounts.TextHash), so
// any wallet able to sign personal messages can act as a caller. The server
// recovers the signer and rejects the request unless it equals the claimed
// address and the timestamp lies within the allowed skew. CallerVerifier
// additionally accepts each caller nonce only once inside that window.
//
// Caller keys are stored either as plain hex (go-ethereum's SaveECDSA
// format) or, when a passphrase is given, sealed with AES-256-GCM under a
// key derived with Argon2id.
package cryptoutils
