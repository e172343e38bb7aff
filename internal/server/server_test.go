package server_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"sheriff-backend/internal/server"
	"sheriff-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: server.ErrorHandler})
	app.Get("/teapot", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("db exploded")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/teapot", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "short and stout", testutil.ErrorMessage(t, resp))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Unexpected server error", testutil.ErrorMessage(t, resp), "internal details stay in the log")
}

func TestRoutes(t *testing.T) {
	env := testutil.Setup(t)

	var health map[string]string
	testutil.Decode(t, env.Do(t, http.MethodGet, "/health", "", nil), &health)
	assert.Equal(t, "ok", health["status"])

	resp := env.Do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "unknown api routes sit behind the jwt group")

	resp = env.Do(t, http.MethodGet, "/api/public/company", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, token := env.BranchAdmin(t, env.Branch(t, "Lahore").ID)
	resp = env.Do(t, http.MethodGet, "/api/admin/branches", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
