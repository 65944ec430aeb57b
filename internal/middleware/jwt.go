package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"lunchdesk/internal/common"
	"lunchdesk/internal/config"
	"lunchdesk/internal/models"
)

const identityContextKey = "identity"

// JWTCustomClaims are the claims lunchdesk expects in a bearer token. The
// subject is the employee id.
type JWTCustomClaims struct {
	OrganizationID string `json:"org_id"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

// Identity validates the claims and converts them to a caller identity.
func (c *JWTCustomClaims) Identity() (common.Identity, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return common.Identity{}, fmt.Errorf("invalid subject: %w", err)
	}
	orgID, err := uuid.Parse(c.OrganizationID)
	if err != nil {
		return common.Identity{}, fmt.Errorf("invalid org_id: %w", err)
	}
	role := models.Role(c.Role)
	if role != models.RoleEmployee && role != models.RoleManager {
		return common.Identity{}, fmt.Errorf("unknown role %q", c.Role)
	}
	return common.Identity{UserID: userID, OrganizationID: orgID, Role: role}, nil
}

// Authenticator verifies bearer tokens either with a shared HMAC secret or
// against a remote JWKS.
type Authenticator struct {
	keyFunc jwt.Keyfunc
	methods []string
	issuer  string
	jwks    *keyfunc.JWKS
	log     *zap.Logger
}

func NewAuthenticator(cfg config.AuthConfig, log *zap.Logger) (*Authenticator, error) {
	a := &Authenticator{issuer: cfg.Issuer, log: log}

	if cfg.JWKSURL != "" {
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  5 * time.Minute,
			RefreshTimeout:    10 * time.Second,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				log.Warn("jwks refresh failed", zap.String("jwks_url", cfg.JWKSURL), zap.Error(err))
			},
		})
		if err != nil {
			return nil, fmt.Errorf("load jwks: %w", err)
		}
		a.jwks = jwks
		a.keyFunc = jwks.Keyfunc
		a.methods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}
		return a, nil
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required when no jwks url is set")
	}
	secret := []byte(cfg.JWTSecret)
	a.keyFunc = func(*jwt.Token) (interface{}, error) { return secret, nil }
	a.methods = []string{"HS256", "HS384", "HS512"}
	return a, nil
}

// Close stops the background JWKS refresh, if any.
func (a *Authenticator) Close() {
	if a.jwks != nil {
		a.jwks.EndBackground()
	}
}

// ParseToken verifies a raw token and returns the caller identity it carries.
func (a *Authenticator) ParseToken(raw string) (common.Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods(a.methods), jwt.WithExpirationRequired()}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := new(JWTCustomClaims)
	token, err := jwt.ParseWithClaims(raw, claims, a.keyFunc, opts...)
	if err != nil {
		return common.Identity{}, err
	}
	if !token.Valid {
		return common.Identity{}, errors.New("token not valid")
	}
	return claims.Identity()
}

// Middleware authenticates the request and stores the caller identity in
// the request context.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey: identityContextKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return a.ParseToken(auth)
		},
		SuccessHandler: func(c echo.Context) {
			id, ok := c.Get(identityContextKey).(common.Identity)
			if !ok {
				return
			}
			c.SetRequest(c.Request().WithContext(common.WithIdentity(c.Request().Context(), id)))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			a.log.Debug("rejected bearer token", zap.String("path", c.Path()), zap.Error(err))
			return common.SendUnauthorizedError(c)
		},
	})
}
