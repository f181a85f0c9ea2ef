package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "bikerent/pkg/errors"
	httputil "bikerent/pkg/http"
	"bikerent/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDClaim carries the caller identity in tokens issued by the login
// service.
const UserIDClaim = "userId"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// SkipFunc reports whether a request may pass without a token.
type SkipFunc func(r *http.Request) bool

// Authenticator validates HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	log    *logger.Logger
}

func NewAuthenticator(secret string, log *logger.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), log: log}
}

// UserID parses the Authorization header value and returns the userId claim.
func (a *Authenticator) UserID(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID, _ := claims[UserIDClaim].(string)
	if userID == "" {
		return "", fmt.Errorf("%w: %s claim is missing", ErrInvalidToken, UserIDClaim)
	}
	return userID, nil
}

// Authenticate stores the caller's user id in the request context. Requests
// matched by skip are passed through untouched.
func Authenticate(auth *Authenticator, skip SkipFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip != nil && skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := auth.UserID(r.Header.Get("Authorization"))
			if err != nil {
				auth.log.Warn("Rejected unauthenticated request",
					"request_id", RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"error", err,
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="bikerent"`)
				_ = httputil.WriteError(w, apperrors.Unauthorized("A valid bearer token is required"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// PublicReads lets anonymous GETs through for the given path prefixes.
func PublicReads(prefixes ...string) SkipFunc {
	return func(r *http.Request) bool {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			return false
		}
		for _, p := range prefixes {
			if strings.HasPrefix(r.URL.Path, p) {
				return true
			}
		}
		return false
	}
}
