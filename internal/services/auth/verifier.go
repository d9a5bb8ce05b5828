package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/common"
	"github.com/ternarybob/tasker/internal/interfaces"
	"golang.org/x/time/rate"
)

const (
	jwksRefreshInterval    = time.Hour
	unknownKIDRefreshEvery = 5 * time.Minute
)

// Verifier checks bearer tokens against the identity provider's JWKS
type Verifier struct {
	keyfunc    jwt.Keyfunc
	algorithms []string
	issuer     string
	clientID   string
	tokens     interfaces.TokenStorage
	logger     arbor.ILogger
}

var _ interfaces.TokenVerifier = (*Verifier)(nil)

// NewVerifier builds a verifier whose key set is fetched from auth.jwks_url and refreshed
// in the background until ctx is cancelled. When neither jwks_url nor issuer is configured
// every token is rejected.
func NewVerifier(ctx context.Context, config *common.AuthConfig, tokens interfaces.TokenStorage, logger arbor.ILogger) (*Verifier, error) {
	jwksURL := JWKSURL(config)
	if jwksURL == "" {
		logger.Warn().Msg("No JWKS URL or issuer configured; all bearer tokens will be rejected")
		return NewVerifierWithKeyfunc(nil, config, tokens, logger), nil
	}

	kf, err := newRemoteKeyfunc(ctx, jwksURL, func(ctx context.Context, err error) {
		logger.Warn().Err(err).Str("jwks_url", jwksURL).Msg("Failed to refresh JWKS")
	})
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("jwks_url", jwksURL).Msg("JWKS verifier initialized")

	return NewVerifierWithKeyfunc(kf, config, tokens, logger), nil
}

// newRemoteKeyfunc fetches the key set at jwksURL, refreshing it hourly and on unknown key ids.
// A failed first fetch is reported to onError rather than failing startup.
func newRemoteKeyfunc(ctx context.Context, jwksURL string, onError func(context.Context, error)) (jwt.Keyfunc, error) {
	parsed, err := url.ParseRequestURI(jwksURL)
	if err != nil {
		return nil, fmt.Errorf("invalid JWKS URL %q: %w", jwksURL, err)
	}

	remote, err := jwkset.NewStorageFromHTTP(parsed, jwkset.HTTPClientStorageOptions{
		Ctx:                       ctx,
		NoErrorReturnFirstHTTPReq: true,
		RefreshErrorHandler:       onError,
		RefreshInterval:           jwksRefreshInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS storage: %w", err)
	}

	storage, err := jwkset.NewHTTPClient(jwkset.HTTPClientOptions{
		HTTPURLs:          map[string]jwkset.Storage{parsed.String(): remote},
		RateLimitWaitMax:  time.Minute,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(unknownKIDRefreshEvery), 1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS keyfunc: %w", err)
	}
	return k.Keyfunc, nil
}

// NewVerifierWithKeyfunc builds a verifier around an existing key lookup
func NewVerifierWithKeyfunc(kf jwt.Keyfunc, config *common.AuthConfig, tokens interfaces.TokenStorage, logger arbor.ILogger) *Verifier {
	algorithms := config.AllowedAlgorithms
	if len(algorithms) == 0 {
		algorithms = []string{"RS256"}
	}
	return &Verifier{
		keyfunc:    kf,
		algorithms: algorithms,
		issuer:     config.Issuer,
		clientID:   config.ClientID,
		tokens:     tokens,
		logger:     logger,
	}
}

// JWKSURL returns the configured key set location, defaulting to the issuer's well-known path
func JWKSURL(config *common.AuthConfig) string {
	if config.JWKSURL != "" {
		return config.JWKSURL
	}
	if config.Issuer != "" {
		return strings.TrimRight(config.Issuer, "/") + "/.well-known/jwks.json"
	}
	return ""
}

// Verify validates the token signature, expiry, issuer and audience, then rejects signed-out tokens
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*interfaces.Claims, error) {
	if v.keyfunc == nil {
		return nil, fmt.Errorf("%w: no key set configured", interfaces.ErrInvalidToken)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods(v.algorithms),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, v.keyfunc, options...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, interfaces.ErrInvalidToken
	}

	if v.clientID != "" && !audienceMatches(claims, v.clientID) {
		return nil, fmt.Errorf("%w: client mismatch", interfaces.ErrInvalidToken)
	}

	username := stringClaim(claims, "username")
	if username == "" {
		username = stringClaim(claims, "cognito:username")
	}
	if username == "" {
		return nil, fmt.Errorf("%w: no username claim", interfaces.ErrInvalidToken)
	}

	subject, _ := claims.GetSubject()
	expiresAt, err := claims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return nil, fmt.Errorf("%w: no expiry", interfaces.ErrInvalidToken)
	}

	if v.tokens != nil {
		revoked, err := v.tokens.IsRevoked(ctx, HashToken(rawToken))
		if err != nil {
			return nil, fmt.Errorf("failed to check token revocation: %w", err)
		}
		if revoked {
			return nil, interfaces.ErrTokenRevoked
		}
	}

	return &interfaces.Claims{
		Subject:   subject,
		Username:  username,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// audienceMatches accepts access tokens (client_id claim) and ID tokens (aud claim)
func audienceMatches(claims jwt.MapClaims, clientID string) bool {
	if stringClaim(claims, "client_id") == clientID {
		return true
	}
	audience, err := claims.GetAudience()
	if err != nil {
		return false
	}
	for _, aud := range audience {
		if aud == clientID {
			return true
		}
	}
	return false
}

func stringClaim(claims jwt.MapClaims, name string) string {
	if value, ok := claims[name].(string); ok {
		return value
	}
	return ""
}
