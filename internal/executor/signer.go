// Package executor implements the order executor (C13): deterministic
// client-id minting, per-exchange request signing, concurrent fan-out over
// the connection pool, and best-response selection.
package executor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Signer produces the exchange-native signature for a parameter set
// (§4.12). Implementations never see plaintext secrets escape the signer.
type Signer interface {
	Sign(params map[string]string, method, path, body string) (string, error)
}

// BinanceSigner signs HMAC-SHA256 over "k1=v1&k2=v2&..." with keys sorted,
// hex-encoded — mirrors the teacher's buildHMAC shape, swapped from
// base64-over-timestamp+method+path to Binance's own sorted query string.
type BinanceSigner struct{ Secret string }

func (s BinanceSigner) Sign(params map[string]string, method, path, body string) (string, error) {
	query := sortedQueryString(params)
	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// OKXSigner signs HMAC-SHA256 over timestamp+method+path+body,
// base64-encoded — grounded directly on the teacher's buildHMAC in
// internal/exchange/auth.go.
type OKXSigner struct{ Secret string }

func (s OKXSigner) Sign(params map[string]string, method, path, body string) (string, error) {
	timestamp := params["timestamp"]
	message := timestamp + method + path + body
	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// BybitSigner signs as Binance but over Bybit's own parameter layout
// (§4.12: "as Binance but over its own parameter layout" — the sorted
// key=value join is identical; only the caller's param set differs).
type BybitSigner struct{ Secret string }

func (s BybitSigner) Sign(params map[string]string, method, path, body string) (string, error) {
	query := sortedQueryString(params)
	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func sortedQueryString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, params[k])
	}
	return strings.Join(parts, "&")
}

// SignerRegistry looks up a Signer by exchange name (§4.12 step 2).
type SignerRegistry struct {
	signers map[string]Signer
}

// NewSignerRegistry creates an empty registry.
func NewSignerRegistry() *SignerRegistry {
	return &SignerRegistry{signers: make(map[string]Signer)}
}

// Register binds exchange to a signer.
func (r *SignerRegistry) Register(exchange string, signer Signer) {
	r.signers[exchange] = signer
}

// Lookup returns the signer for exchange, or false if absent.
func (r *SignerRegistry) Lookup(exchange string) (Signer, bool) {
	s, ok := r.signers[exchange]
	return s, ok
}
