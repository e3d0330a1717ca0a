package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx, id := New(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, FromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	id := FromContext(context.Background())
	assert.NotEmpty(t, id) // generates new UUID
}

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "test-123")
	assert.Equal(t, "test-123", FromContext(ctx))
}

func TestMiddleware_SetsHeaderAndLocals(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())

	var fromLocals string
	app.Get("/", func(c *fiber.Ctx) error {
		fromLocals = FromFiber(c)
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)

	header := resp.Header.Get("X-Request-ID")
	assert.NotEmpty(t, header)
	assert.Equal(t, header, fromLocals)
}

func TestFromFiber_WithoutMiddleware(t *testing.T) {
	app := fiber.New()
	var id string
	app.Get("/", func(c *fiber.Ctx) error {
		id = FromFiber(c)
		return c.SendString("ok")
	})

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Empty(t, id)
}
