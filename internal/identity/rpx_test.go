package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("apiKey"))
		assert.Equal(t, "tok", r.PostForm.Get("token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthInfoReturnsProfile(t *testing.T) {
	srv := newTestServer(t, `{"stat":"ok","profile":{"identifier":"https://id.example/u/1",
		"providerName":"Example","preferredUsername":"jdoe","name":{"formatted":"John Doe"},
		"email":"a@example.com","verifiedEmail":"v@example.com"}}`)
	client := NewClient(func() string { return "secret" }).WithEndpoint(srv.URL)

	profile, err := client.AuthInfo(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "https://id.example/u/1", profile.Identifier)
	assert.Equal(t, "Example", profile.ProviderName)
	assert.Equal(t, "v@example.com", profile.BestEmail())
	assert.Equal(t, "John Doe", profile.BestName())
}

func TestAuthInfoServiceError(t *testing.T) {
	srv := newTestServer(t, `{"stat":"fail","err":{"code":2,"msg":"Data not found"}}`)
	client := NewClient(func() string { return "secret" }).WithEndpoint(srv.URL)

	_, err := client.AuthInfo(context.Background(), "tok")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 2, apiErr.Code)
}

func TestAuthInfoRequiresKeyAndToken(t *testing.T) {
	_, err := NewClient(func() string { return "" }).AuthInfo(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewClient(func() string { return "secret" }).AuthInfo(context.Background(), " ")
	assert.ErrorIs(t, err, ErrMissingToken)
}
