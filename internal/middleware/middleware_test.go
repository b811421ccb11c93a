package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/reelforge/api/internal/auth"
)

func whoami(c *fiber.Ctx) error {
	return c.SendString(GetUserID(c))
}

func TestAuthenticate(t *testing.T) {
	hmac := auth.NewHMACVerifier("secret")
	app := fiber.New()
	app.Get("/me", NewAuthMiddleware(auth.NewChain(hmac)).Authenticate(), whoami)

	token, err := hmac.Issue("merchant-1", "", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	for _, header := range []string{"", "Bearer nope"} {
		req := httptest.NewRequest("GET", "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, _ := app.Test(req)
		if resp.StatusCode != 401 {
			t.Errorf("header %q: expected 401, got %d", header, resp.StatusCode)
		}
	}
}

func TestGatewayAuth(t *testing.T) {
	app := fiber.New()
	app.Get("/me", GatewayAuthMiddleware(), whoami)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("X-User-Id", "merchant-9")
	resp, _ := app.Test(req)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/me", nil))
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401 without identity headers, got %d", resp.StatusCode)
	}
}

func TestRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	app := fiber.New()
	app.Post("/videos", GatewayAuthMiddleware(), NewRateLimiter(rdb).SubmitLimit(2), whoami)

	send := func(user string) int {
		req := httptest.NewRequest("POST", "/videos", nil)
		req.Header.Set("X-User-Id", user)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		return resp.StatusCode
	}

	if send("a") != 200 || send("a") != 200 {
		t.Fatal("first two requests should pass")
	}
	if code := send("a"); code != 429 {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := send("b"); code != 200 {
		t.Fatalf("other merchants are limited separately, got %d", code)
	}

	mr.FastForward(time.Hour + time.Second)
	if code := send("a"); code != 200 {
		t.Fatalf("expected window reset, got %d", code)
	}
}
