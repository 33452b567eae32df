package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/washpoint/washpoint-backend/api/responses"
	"github.com/washpoint/washpoint-backend/pkg/config"
	pkgerrors "github.com/washpoint/washpoint-backend/pkg/errors"
	"github.com/washpoint/washpoint-backend/pkg/logger"
)

// AccessClaims are the verified identity of a request. Exactly one of the
// identifier fields is set for customer and cleaner tokens; company tokens
// carry only the company id.
type AccessClaims struct {
	Role       string `json:"role"`
	CustomerID int64  `json:"customer_id,omitempty"`
	CleanerID  int64  `json:"cleaner_id,omitempty"`
	CompanyID  int64  `json:"company_id,omitempty"`
	jwt.RegisteredClaims
}

// ParseAccessToken verifies the token signature and issuer and returns the
// embedded claims.
func ParseAccessToken(cfg config.JWTConfig, token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithRole(r.Context(), claims.Role)
			if claims.CustomerID > 0 {
				ctx = WithCustomerID(ctx, claims.CustomerID)
			}
			if claims.CleanerID > 0 {
				ctx = WithCleanerID(ctx, claims.CleanerID)
			}
			if claims.CompanyID > 0 {
				ctx = WithCompanyID(ctx, claims.CompanyID)
			}

			if logg != nil {
				fields := map[string]any{"actor_role": claims.Role}
				if claims.CustomerID > 0 {
					fields["customer_id"] = claims.CustomerID
				}
				if claims.CleanerID > 0 {
					fields["cleaner_id"] = claims.CleanerID
				}
				if claims.CompanyID > 0 {
					fields["company_id"] = claims.CompanyID
				}
				ctx = logg.WithFields(ctx, fields)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
