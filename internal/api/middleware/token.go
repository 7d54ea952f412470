package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dhima/reading-log/internal/api/response"
	"github.com/dhima/reading-log/internal/identity"
	"github.com/dhima/reading-log/pkg/clock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// TokenKey is the context key for the resolved reader token.
	TokenKey = "reader_token"
	// TokenQueryParam is the query parameter carrying the token.
	TokenQueryParam = "token"
	// TokenCookieTTL is how long a token cookie stays valid.
	TokenCookieTTL = 10 * 365 * 24 * time.Hour
)

// TokenOptions configures Token.
type TokenOptions struct {
	CookieName string
	Provider   identity.Provider
	Clock      clock.Clock
	Logger     *zap.Logger
	// RememberCookie sends the resolved token back as a cookie when it was
	// issued or supplied only through the query string.
	RememberCookie bool
	// OnIssued runs once per issued token.
	OnIssued func()
	// SameSite defaults to Lax. None also marks the cookie Secure.
	SameSite http.SameSite
}

// ParseSameSite maps lax, strict or none to the cookie attribute. An empty
// value is Lax.
func ParseSameSite(value string) (http.SameSite, error) {
	switch value {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return http.SameSiteDefaultMode, fmt.Errorf("unknown SameSite mode %q", value)
	}
}

// Token resolves the reader token from the query string, then the cookie,
// then the identity provider. A request without a resolvable token continues
// with an empty token so the handler can reject it.
func Token(opts TokenOptions) gin.HandlerFunc {
	if opts.CookieName == "" {
		opts.CookieName = TokenQueryParam
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}

	return func(c *gin.Context) {
		supplied := c.Query(TokenQueryParam)
		cookieValue, _ := c.Cookie(opts.CookieName)
		if supplied == "" {
			supplied = cookieValue
		}

		token, issued, err := opts.Provider.Resolve(supplied)
		switch {
		case errors.Is(err, identity.ErrNoToken):
			c.Set(TokenKey, "")
			c.Next()
			return
		case err != nil:
			opts.Logger.Error("failed to resolve reader token",
				zap.String("request_id", response.GetRequestID(c)),
				zap.Error(err))
			response.InternalServerError(c)
			c.Abort()
			return
		}

		if issued && opts.OnIssued != nil {
			opts.OnIssued()
		}
		if opts.RememberCookie && token != cookieValue {
			setTokenCookie(c, opts.CookieName, token, opts.SameSite, opts.Clock.Now())
		}

		c.Set(TokenKey, token)
		c.Next()
	}
}

// GetToken returns the token resolved by Token, or "" when none was.
func GetToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}

func setTokenCookie(c *gin.Context, name, token string, sameSite http.SameSite, now time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(TokenCookieTTL).UTC(),
		MaxAge:   int(TokenCookieTTL / time.Second),
		HttpOnly: true,
		Secure:   c.Request.TLS != nil || sameSite == http.SameSiteNoneMode,
		SameSite: sameSite,
	})
}
