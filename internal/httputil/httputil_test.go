package httputil

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-09")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("09/03/2026")
	assert.Error(t, err)

	p, err := ParseOptionalDate("  ")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestDateOf(t *testing.T) {
	in := time.Date(2026, 5, 1, 23, 10, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), DateOf(in))
}

func TestDateRange(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		start, end, err := DateRange(c, 30)
		if err != nil {
			return err
		}
		return c.SendString(FormatDate(start) + "|" + FormatDate(end))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/?start_date=2026-01-01&end_date=2026-01-31", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "2026-01-01|2026-01-31", string(body))

	resp, err = app.Test(httptest.NewRequest("GET", "/?start_date=2026-02-01&end_date=2026-01-31", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestQueryUint(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		v, err := QueryUint(c, "guard_id")
		if err != nil {
			return err
		}
		if v == nil {
			return c.SendString("nil")
		}
		return c.SendString("ok")
	})

	for query, want := range map[string]int{"": 200, "?guard_id=4": 200, "?guard_id=abc": 400, "?guard_id=0": 400} {
		resp, err := app.Test(httptest.NewRequest("GET", "/"+query, nil))
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, query)
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("ops@sheriffsecurity.pk"))
	assert.False(t, ValidEmail("ops@localhost"))
	assert.False(t, ValidEmail("a@b@c.pk"))
	assert.False(t, ValidEmail("@sheriff.pk"))
	assert.False(t, ValidEmail("ops @sheriff.pk"))
}
