package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/mrlokans/healthbook/internal/docstore/memstore"
)

func TestContext(t *testing.T) {
	p := newTestProvider(t, newFakeAuth(), memstore.New())

	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	got, ok := FromContext(NewContext(context.Background(), p))
	assert.True(t, ok)
	assert.Same(t, p, got)
}

func TestGinHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := newTestProvider(t, newFakeAuth(), memstore.New())

	t.Run("inject then get", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		Inject(c, p)

		got, ok := Get(c)
		assert.True(t, ok)
		assert.Same(t, p, got)
		assert.Same(t, p, MustGet(c))

		fromReq, ok := FromContext(c.Request.Context())
		assert.True(t, ok)
		assert.Same(t, p, fromReq)
	})

	t.Run("missing provider", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		_, ok := Get(c)
		assert.False(t, ok)
		assert.Panics(t, func() { MustGet(c) })
	})
}
