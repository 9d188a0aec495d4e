package cryptoutils

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

const (
	HeaderCallerAddress   = "X-Caller-Address"
	HeaderCallerTimestamp = "X-Caller-Timestamp"
	HeaderCallerNonce     = "X-Caller-Nonce"
	HeaderCallerSignature = "X-Caller-Signature"
)

// DefaultMaxSkew is the accepted distance between the signing time and the
// server clock.
const DefaultMaxSkew = 5 * time.Minute

// DefaultReplayCapacity is the number of accepted requests a CallerVerifier
// remembers while their timestamps are still inside the skew window.
const DefaultReplayCapacity = 1 << 16

const maxNonceLength = 64

var (
	// ErrUnauthenticated is returned when a request's caller headers are
	// missing or do not verify.
	ErrUnauthenticated = errors.New("caller signature invalid")

	// ErrReplayed is returned for a signed request that was already accepted.
	ErrReplayed = fmt.Errorf("%w: request already accepted", ErrUnauthenticated)
)

// SigningPayload is the message a caller signs for a request.
func SigningPayload(method, path string, timestamp int64, nonce string, body []byte) []byte {
	return []byte(fmt.Sprintf("%s\n%s\n%d\n%s\n%s", method, path, timestamp, nonce, hexutil.Encode(crypto.Keccak256(body))))
}

// SignRequest sets the caller headers on req under a fresh nonce. body must
// be the exact bytes sent as the request body (nil for none).
func SignRequest(req *http.Request, body []byte, key *ecdsa.PrivateKey, now time.Time) error {
	ts := now.Unix()
	nonce := uuid.NewString()
	hash := accounts.TextHash(SigningPayload(req.Method, req.URL.Path, ts, nonce, body))

	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	req.Header.Set(HeaderCallerAddress, crypto.PubkeyToAddress(key.PublicKey).Hex())
	req.Header.Set(HeaderCallerTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderCallerNonce, nonce)
	req.Header.Set(HeaderCallerSignature, hexutil.Encode(sig))
	return nil
}

// SignedCaller is an authenticated request origin.
type SignedCaller struct {
	Address   common.Address
	Timestamp time.Time
	Nonce     string
}

// RecoverCaller verifies the caller headers of req against body and returns
// the authenticated address. It does not detect replays; see CallerVerifier.
func RecoverCaller(req *http.Request, body []byte, now time.Time, maxSkew time.Duration) (common.Address, error) {
	caller, err := recoverSigned(req, body, now, maxSkew)
	if err != nil {
		return common.Address{}, err
	}
	return caller.Address, nil
}

func recoverSigned(req *http.Request, body []byte, now time.Time, maxSkew time.Duration) (SignedCaller, error) {
	claimed := req.Header.Get(HeaderCallerAddress)
	tsHeader := req.Header.Get(HeaderCallerTimestamp)
	nonce := req.Header.Get(HeaderCallerNonce)
	sigHeader := req.Header.Get(HeaderCallerSignature)
	if claimed == "" || tsHeader == "" || nonce == "" || sigHeader == "" {
		return SignedCaller{}, fmt.Errorf("%w: missing caller headers", ErrUnauthenticated)
	}

	if !common.IsHexAddress(claimed) {
		return SignedCaller{}, fmt.Errorf("%w: malformed address", ErrUnauthenticated)
	}
	if len(nonce) > maxNonceLength {
		return SignedCaller{}, fmt.Errorf("%w: nonce longer than %d bytes", ErrUnauthenticated, maxNonceLength)
	}

	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return SignedCaller{}, fmt.Errorf("%w: malformed timestamp", ErrUnauthenticated)
	}
	signedAt := time.Unix(ts, 0)
	if skew := now.Sub(signedAt).Abs(); skew > maxSkew {
		return SignedCaller{}, fmt.Errorf("%w: timestamp outside allowed skew of %s", ErrUnauthenticated, maxSkew)
	}

	sig, err := hexutil.Decode(sigHeader)
	if err != nil || len(sig) != crypto.SignatureLength {
		return SignedCaller{}, fmt.Errorf("%w: malformed signature", ErrUnauthenticated)
	}
	// Wallets return V as 27/28.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	hash := accounts.TextHash(SigningPayload(req.Method, req.URL.Path, ts, nonce, body))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return SignedCaller{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	recovered := crypto.PubkeyToAddress(*pub)
	if recovered != common.HexToAddress(claimed) {
		return SignedCaller{}, fmt.Errorf("%w: signer %s does not match %s", ErrUnauthenticated, recovered.Hex(), claimed)
	}
	return SignedCaller{Address: recovered, Timestamp: signedAt, Nonce: nonce}, nil
}

type replayKey struct {
	caller common.Address
	nonce  string
}

// CallerVerifier authenticates signed requests and accepts each
// (caller, nonce) pair once while its timestamp is inside the skew window.
// Once the window has passed, the timestamp check rejects the request on
// its own.
type CallerVerifier struct {
	maxSkew  time.Duration
	capacity int

	mu   sync.Mutex
	seen lru.BasicLRU[replayKey, time.Time]
}

// NewCallerVerifier creates a verifier. Zero values select DefaultMaxSkew
// and DefaultReplayCapacity.
func NewCallerVerifier(maxSkew time.Duration, capacity int) *CallerVerifier {
	if maxSkew == 0 {
		maxSkew = DefaultMaxSkew
	}
	if capacity <= 0 {
		capacity = DefaultReplayCapacity
	}
	return &CallerVerifier{
		maxSkew:  maxSkew,
		capacity: capacity,
		seen:     lru.NewBasicLRU[replayKey, time.Time](capacity),
	}
}

// MaxSkew returns the accepted timestamp distance.
func (v *CallerVerifier) MaxSkew() time.Duration {
	return v.maxSkew
}

// Verify authenticates req and records it. A second request with the same
// caller and nonce fails with ErrReplayed.
func (v *CallerVerifier) Verify(req *http.Request, body []byte, now time.Time) (common.Address, error) {
	caller, err := recoverSigned(req, body, now, v.maxSkew)
	if err != nil {
		return common.Address{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Expired entries fail the timestamp check anyway.
	for {
		_, expires, ok := v.seen.GetOldest()
		if !ok || !expires.Before(now) {
			break
		}
		v.seen.RemoveOldest()
	}

	key := replayKey{caller: caller.Address, nonce: caller.Nonce}
	if v.seen.Contains(key) {
		return common.Address{}, fmt.Errorf("%w: nonce %s from %s", ErrReplayed, caller.Nonce, caller.Address.Hex())
	}
	// Never evict an entry that could still be replayed.
	if v.seen.Len() >= v.capacity {
		return common.Address{}, fmt.Errorf("%w: too many signed requests inside the skew window", ErrUnauthenticated)
	}

	v.seen.Add(key, caller.Timestamp.Add(v.maxSkew))
	return caller.Address, nil
}
