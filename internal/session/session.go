// Package session gives each visitor a stable, signed identifier carried in a
// cookie. The identifier scopes the visitor's persisted basket.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CookieName = "mb_session"
	issuer     = "minibasket"
)

var ErrInvalidToken = errors.New("invalid session token")

type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	log    *zap.Logger
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration, secure bool, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		log:    log,
		now:    time.Now,
	}
}

// Issue signs a token for session id.
func (m *Manager) Issue(id string) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   id,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse validates a token and returns the session id it carries.
func (m *Manager) Parse(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims

	token, err := jwt.ParseWithClaims(tokenStr, &c, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || token == nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if _, err := uuid.Parse(c.Subject); err != nil {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

type ctxKey struct{}

func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Middleware attaches the visitor's session id to the request context. A
// missing, tampered or expired cookie starts a fresh session. The cookie is
// refreshed on every request so active sessions do not expire.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(CookieName); err == nil {
			if sid, err := m.Parse(c.Value); err == nil {
				id = sid
			} else {
				m.log.Debug("session cookie rejected", zap.Error(err))
			}
		}
		if id == "" {
			id = uuid.NewString()
		}

		tok, err := m.Issue(id)
		if err != nil {
			m.log.Error("issue session token", zap.Error(err))
		} else {
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    tok,
				Path:     "/",
				MaxAge:   int(m.ttl.Seconds()),
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}
