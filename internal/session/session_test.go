package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestManager_IssueParse(t *testing.T) {
	m := NewManager(testSecret, time.Hour, false, nil)

	tok, err := m.Issue("8c5c4f4e-7d0b-4c43-a9a6-0b0b7f3c1f10")
	require.NoError(t, err)

	id, err := m.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "8c5c4f4e-7d0b-4c43-a9a6-0b0b7f3c1f10", id)
}

func TestManager_ParseRejects(t *testing.T) {
	m := NewManager(testSecret, time.Hour, false, nil)
	other := NewManager("another-secret-another-secret-xx", time.Hour, false, nil)

	foreign, err := other.Issue("8c5c4f4e-7d0b-4c43-a9a6-0b0b7f3c1f10")
	require.NoError(t, err)
	_, err = m.Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	notUUID, err := m.Issue("not-a-uuid")
	require.NoError(t, err)
	_, err = m.Parse(notUUID)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_ParseExpired(t *testing.T) {
	m := NewManager(testSecret, time.Minute, false, nil)
	start := time.Now()
	m.now = func() time.Time { return start }

	tok, err := m.Issue("8c5c4f4e-7d0b-4c43-a9a6-0b0b7f3c1f10")
	require.NoError(t, err)

	m.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = m.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware_StableSession(t *testing.T) {
	m := NewManager(testSecret, time.Hour, false, nil)

	var seen []string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		require.True(t, ok)
		seen = append(seen, id)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	h.ServeHTTP(httptest.NewRecorder(), req)

	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.AddCookie(&http.Cookie{Name: CookieName, Value: "tampered"})
	h.ServeHTTP(httptest.NewRecorder(), bad)

	require.Len(t, seen, 3)
	assert.Equal(t, seen[0], seen[1])
	assert.NotEqual(t, seen[0], seen[2])
}
