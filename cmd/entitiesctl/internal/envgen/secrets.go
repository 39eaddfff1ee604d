package envgen

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// TokenSource produces secret material for generated credentials.
//
// # Description
//
// Injected wherever secrets or identifiers are minted so tests can supply
// a scripted source and assert exact output. The production source reads
// crypto/rand.
//
// # Security Context
//
// Tokens produced here end up in .env files and database rows. They are
// never logged; callers mark the resulting variables Sensitive.
type TokenSource interface {
	// Hex returns n random bytes encoded as lowercase hex (2n characters).
	Hex(n int) (string, error)

	// URLSafe returns n random bytes in unpadded URL-safe base64.
	URLSafe(n int) (string, error)
}

// CryptoTokenSource implements TokenSource with crypto/rand.
type CryptoTokenSource struct{}

// NewCryptoTokenSource creates the production token source.
func NewCryptoTokenSource() *CryptoTokenSource {
	return &CryptoTokenSource{}
}

// Hex returns n random bytes hex-encoded.
func (s *CryptoTokenSource) Hex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// URLSafe returns n random bytes in unpadded URL-safe base64.
func (s *CryptoTokenSource) URLSafe(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// StaticTokenSource returns fixed values, for tests.
//
// HexValue and URLSafeValue are returned verbatim regardless of the
// requested length, optionally suffixed with a counter so successive
// calls stay distinguishable.
type StaticTokenSource struct {
	HexValue     string
	URLSafeValue string
	Counted      bool

	hexCalls int
	urlCalls int
}

// Hex returns the scripted hex value.
func (s *StaticTokenSource) Hex(n int) (string, error) {
	s.hexCalls++
	if s.Counted {
		return fmt.Sprintf("%s%d", s.HexValue, s.hexCalls), nil
	}
	return s.HexValue, nil
}

// URLSafe returns the scripted URL-safe value.
func (s *StaticTokenSource) URLSafe(n int) (string, error) {
	s.urlCalls++
	if s.Counted {
		return fmt.Sprintf("%s%d", s.URLSafeValue, s.urlCalls), nil
	}
	return s.URLSafeValue, nil
}

// Compile-time interface compliance checks.
var (
	_ TokenSource = (*CryptoTokenSource)(nil)
	_ TokenSource = (*StaticTokenSource)(nil)
)
