package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
)

// ScopeAdmin unlocks reserve listing, configuration, prices, funding and
// pause control.
const ScopeAdmin = "lending:admin"

// AuthConfig configures bearer authentication. User tokens are HS256 JWTs
// whose subject is the caller's hex address. APITokens and verified client
// certificates whose common name is in AllowedClientCNs authenticate
// operators, which carry the admin scope and no address.
type AuthConfig struct {
	HMACSecret       string
	Issuer           string
	Audience         string
	ScopeClaim       string
	APITokens        []string
	AllowedClientCNs []string
	ClockSkew        time.Duration
}

// Principal is the authenticated caller of a request.
type Principal struct {
	Address  common.Address
	Scopes   []string
	Operator bool
}

func (p Principal) HasScope(scope string) bool {
	if p.Operator {
		return true
	}
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

type principalKey struct{}

// PrincipalFrom returns the principal installed by the auth middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
)

// Authenticator validates bearer tokens.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
	tokens [][]byte
	cns    map[string]struct{}
}

func NewAuthenticator(cfg AuthConfig) *Authenticator {
	if cfg.ScopeClaim == "" {
		cfg.ScopeClaim = "scope"
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	auth := &Authenticator{
		cfg:    cfg,
		secret: []byte(strings.TrimSpace(cfg.HMACSecret)),
		cns:    make(map[string]struct{}),
	}
	for _, cn := range cfg.AllowedClientCNs {
		if trimmed := strings.TrimSpace(cn); trimmed != "" {
			auth.cns[trimmed] = struct{}{}
		}
	}
	for _, token := range cfg.APITokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			auth.tokens = append(auth.tokens, []byte(trimmed))
		}
	}
	return auth
}

// Middleware rejects requests without a valid token. Required scopes are
// checked after authentication and answer 403 when missing.
func (a *Authenticator) Middleware(requiredScopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := a.Authenticate(r)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, ErrorBody{
					Error:     err.Error(),
					Kind:      "unauthenticated",
					RequestID: requestID(r.Context()),
				})
				return
			}
			for _, scope := range requiredScopes {
				if !principal.HasScope(scope) {
					writeJSON(w, http.StatusForbidden, ErrorBody{
						Error:     "insufficient scope",
						Kind:      "forbidden",
						RequestID: requestID(r.Context()),
					})
					return
				}
			}
			ctx := context.WithValue(r.Context(), principalKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authenticate resolves the principal of r.
func (a *Authenticator) Authenticate(r *http.Request) (Principal, error) {
	token := parseBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-API-Token"))
	}
	if token == "" {
		if a.clientCertAllowed(r) {
			return Principal{Operator: true, Scopes: []string{ScopeAdmin}}, nil
		}
		return Principal{}, errMissingToken
	}
	for _, candidate := range a.tokens {
		if subtle.ConstantTimeCompare(candidate, []byte(token)) == 1 {
			return Principal{Operator: true, Scopes: []string{ScopeAdmin}}, nil
		}
	}
	claims, err := a.parseToken(token)
	if err != nil {
		return Principal{}, errInvalidToken
	}
	subject, err := claims.GetSubject()
	if err != nil || !common.IsHexAddress(subject) {
		return Principal{}, errInvalidToken
	}
	return Principal{
		Address: common.HexToAddress(subject),
		Scopes:  extractScopes(claims, a.cfg.ScopeClaim),
	}, nil
}

func (a *Authenticator) clientCertAllowed(r *http.Request) bool {
	if len(a.cns) == 0 || r.TLS == nil || len(r.TLS.VerifiedChains) == 0 {
		return false
	}
	leaf := r.TLS.VerifiedChains[0][0]
	_, ok := a.cns[leaf.Subject.CommonName]
	return ok
}

func (a *Authenticator) parseToken(tokenString string) (jwt.MapClaims, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("auth secret not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

func extractScopes(claims jwt.MapClaims, claim string) []string {
	switch raw := claims[claim].(type) {
	case string:
		return strings.Fields(raw)
	case []interface{}:
		scopes := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok && s != "" {
				scopes = append(scopes, s)
			}
		}
		return scopes
	default:
		return nil
	}
}

func parseBearerToken(header string) string {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return ""
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(strings.TrimSpace(parts[0]), "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
