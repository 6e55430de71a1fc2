package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/astro-web3/teams-gate/internal/identity"
	"github.com/astro-web3/teams-gate/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var errMissingCredentials = errors.New("missing credentials")

// jwtClaimTypes maps short token claim names to their long-form claim types.
var jwtClaimTypes = map[string]string{
	"oid": identity.ObjectIdentifierClaimType,
	"tid": "http://schemas.microsoft.com/identity/claims/tenantid",
}

type Authenticator interface {
	Authenticate(r *http.Request) (*identity.Principal, error)
}

type jwtAuthenticator struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewJWTAuthenticator verifies HS256 bearer tokens.
func NewJWTAuthenticator(secret, issuer, audience string) Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &jwtAuthenticator{secret: []byte(secret), opts: opts}
}

func (a *jwtAuthenticator) Authenticate(r *http.Request) (*identity.Principal, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, errMissingCredentials
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, a.opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	return &identity.Principal{
		AuthenticationType: "jwt",
		Claims:             principalClaims(claims),
	}, nil
}

// principalClaims flattens token claims in a stable order. Array claims
// yield one claim per string element; non-scalar values are dropped.
func principalClaims(claims jwt.MapClaims) []identity.Claim {
	names := make([]string, 0, len(claims))
	for name := range claims {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]identity.Claim, 0, len(names))
	for _, name := range names {
		claimType := name
		if long, ok := jwtClaimTypes[name]; ok {
			claimType = long
		}

		switch v := claims[name].(type) {
		case string:
			out = append(out, identity.Claim{Type: claimType, Value: v})
		case float64:
			out = append(out, identity.Claim{Type: claimType, Value: strconv.FormatFloat(v, 'f', -1, 64)})
		case bool:
			out = append(out, identity.Claim{Type: claimType, Value: strconv.FormatBool(v)})
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					out = append(out, identity.Claim{Type: claimType, Value: s})
				}
			}
		}
	}
	return out
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type headerAuthenticator struct {
	objectIDHeader string
}

// NewHeaderAuthenticator trusts an object id header set by an
// authenticating proxy in front of this service.
func NewHeaderAuthenticator(objectIDHeader string) Authenticator {
	return &headerAuthenticator{objectIDHeader: objectIDHeader}
}

func (a *headerAuthenticator) Authenticate(r *http.Request) (*identity.Principal, error) {
	oid := strings.TrimSpace(r.Header.Get(a.objectIDHeader))
	if oid == "" {
		return nil, errMissingCredentials
	}
	return &identity.Principal{
		AuthenticationType: "header",
		Claims: []identity.Claim{
			{Type: identity.ObjectIdentifierClaimType, Value: oid},
		},
	}, nil
}

func authenticationMiddleware(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := authn.Authenticate(c.Request)
		if err != nil {
			logger.WarnContext(c.Request.Context(), "authentication failed",
				slog.String("path", c.Request.URL.Path),
				logger.Err(err),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Request = c.Request.WithContext(identity.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}
