package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// TokenLength is the length of issued tokens.
const TokenLength = 16

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrNoToken is returned when no token was supplied and issuing is disabled.
var ErrNoToken = errors.New("no token supplied")

// Provider resolves the token a request acts for.
type Provider interface {
	// Resolve returns supplied unchanged when it is non-empty. Otherwise it
	// either issues a fresh token (issued=true) or fails with ErrNoToken.
	Resolve(supplied string) (token string, issued bool, err error)
}

// RandomProvider issues random alphanumeric tokens.
type RandomProvider struct {
	issue  bool
	random io.Reader
}

// NewRandomProvider returns a provider that issues tokens when issue is true.
func NewRandomProvider(issue bool) *RandomProvider {
	return &RandomProvider{issue: issue, random: rand.Reader}
}

// Resolve implements Provider.
func (p *RandomProvider) Resolve(supplied string) (string, bool, error) {
	if supplied != "" {
		return supplied, false, nil
	}
	if !p.issue {
		return "", false, ErrNoToken
	}
	token, err := p.newToken()
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

// Passthrough returns a copy of p that never issues.
func (p *RandomProvider) Passthrough() *RandomProvider {
	return &RandomProvider{issue: false, random: p.random}
}

func (p *RandomProvider) newToken() (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, TokenLength)
	for i := range buf {
		n, err := rand.Int(p.random, max)
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}
