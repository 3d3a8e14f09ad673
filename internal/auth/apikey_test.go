package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIKeyAuth(t *testing.T) {
	t.Run("no keys means open", func(t *testing.T) {
		a := NewAPIKeyAuth(nil)

		assert.False(t, a.Enabled())
		assert.True(t, a.IsValidKey(""))
		assert.True(t, a.IsValidKey("anything"))
	})

	t.Run("only configured keys pass", func(t *testing.T) {
		a := NewAPIKeyAuth([]string{" alpha ", "beta", ""})

		assert.True(t, a.Enabled())
		assert.True(t, a.IsValidKey("alpha"))
		assert.True(t, a.IsValidKey("beta"))
		assert.False(t, a.IsValidKey(""))
		assert.False(t, a.IsValidKey("alph"))
	})

	t.Run("removed key stops passing", func(t *testing.T) {
		a := NewAPIKeyAuth([]string{"alpha", "beta"})

		a.RemoveKey("alpha")

		assert.False(t, a.IsValidKey("alpha"))
		assert.True(t, a.IsValidKey("beta"))
	})
}

func TestKeyFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?api_key=query", nil)
	assert.Equal(t, "query", KeyFromRequest(r))

	r.Header.Set(HeaderName, "header")
	assert.Equal(t, "header", KeyFromRequest(r))
}
