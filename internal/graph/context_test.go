package graph

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"notes-api/internal/auth"
	"notes-api/internal/config"
	"notes-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(secret string) *auth.Manager {
	return auth.NewManager(config.AuthConfig{JWTSecret: secret, TokenTTL: time.Hour})
}

func TestBuildAnonymous(t *testing.T) {
	store := models.NewMemoryStore()
	b := NewBuilder(testManager("s1"), store)

	rc, err := b.Build(httptest.NewRequest("POST", "/api", nil))
	require.NoError(t, err)
	assert.False(t, rc.Authenticated())
	assert.Nil(t, rc.Claims)
	assert.Same(t, store, rc.Models)
}

func TestBuildVerifiedToken(t *testing.T) {
	m := testManager("s1")
	store := models.NewMemoryStore()
	tok, err := m.Issue(time.Now(), "u1")
	require.NoError(t, err)

	r := httptest.NewRequest("POST", "/api", nil)
	r.Header.Set("Authorization", tok)
	rc, err := NewBuilder(m, store).Build(r)
	require.NoError(t, err)
	require.True(t, rc.Authenticated())
	assert.Equal(t, "u1", rc.Claims.UserID())
	assert.Same(t, store, rc.Models)
}

func TestBuildRejectsForeignAndExpiredTokens(t *testing.T) {
	issued := time.Unix(1700000000, 0)
	foreign, err := testManager("s2").Issue(issued, "u1")
	require.NoError(t, err)
	expired, err := testManager("s1").Issue(issued, "u1")
	require.NoError(t, err)

	b := NewBuilder(testManager("s1"), models.NewMemoryStore())

	for name, tc := range map[string]struct {
		header string
		now    time.Time
	}{
		"other_secret": {header: "Bearer " + foreign, now: issued.Add(time.Minute)},
		"expired":      {header: expired, now: issued.Add(2 * time.Hour)},
		"garbage":      {header: "abc.def", now: issued},
	} {
		t.Run(name, func(t *testing.T) {
			b.clock = func() time.Time { return tc.now }
			r := httptest.NewRequest("POST", "/api", nil)
			r.Header.Set("Authorization", tc.header)

			rc, err := b.Build(r)
			assert.ErrorIs(t, err, auth.ErrSessionInvalid)
			assert.Nil(t, rc)
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	rc := &Context{Models: models.NewMemoryStore()}
	got, ok := FromContext(WithContext(context.Background(), rc))
	require.True(t, ok)
	assert.Same(t, rc, got)
}
