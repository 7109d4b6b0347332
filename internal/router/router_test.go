package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/campuspool/campuspool/internal/handler"
)

// rejectingLimiter stands in for the login-code token bucket. It short
// circuits with 429 and records that it ran, so the test can tell whether a
// route actually passes through it.
func rejectingLimiter(hits *int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			*hits++
			return c.NoContent(http.StatusTooManyRequests)
		}
	}
}

func TestLoginCodeRoutesPassThroughCodeLimiter(t *testing.T) {
	e := echo.New()
	hits := 0
	RegisterAuth(e, &handler.AuthHandler{}, "secret", rejectingLimiter(&hits))

	for _, path := range []string{"/v1/auth/login-code", "/v1/auth/login-code/verify"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("POST %s = %d, want %d from the code limiter", path, rec.Code, http.StatusTooManyRequests)
		}
	}
	if hits != 2 {
		t.Fatalf("code limiter ran %d times, want 2", hits)
	}
}

func TestRegisterRouteSkipsCodeLimiter(t *testing.T) {
	e := echo.New()
	hits := 0
	RegisterAuth(e, &handler.AuthHandler{}, "secret", rejectingLimiter(&hits))

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if hits != 0 {
		t.Fatalf("code limiter ran on /register; it must only guard the login-code routes")
	}
}
