package cryptoutils

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

func accountsHash(method, path string, ts int64, nonce string, body []byte) []byte {
	return accounts.TextHash(SigningPayload(method, path, ts, nonce, body))
}

func hexEncode(b []byte) string {
	return hexutil.Encode(b)
}
