package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/passcode/internal/auth"
	"github.com/congo-pay/passcode/internal/logging"
)

func TestBearerAuth(t *testing.T) {
	tokens, err := auth.NewTokens("secret")
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	app := fiber.New()
	app.Use(BearerAuth(tokens))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(Owner(c))
	})

	req := httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	signed, _ := tokens.Issue("alice", time.Minute)
	req = httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+signed)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "alice" {
		t.Fatalf("unexpected owner %q", body)
	}
}

func TestFlowRateLimit(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(OwnerKey, c.Get("X-Owner"))
		return c.Next()
	})
	app.Post("/flows", FlowRateLimit(cache, 2, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	send := func(owner string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/flows", nil)
		req.Header.Set("X-Owner", owner)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		return resp.StatusCode
	}

	for i := 0; i < 2; i++ {
		if status := send("alice"); status != fiber.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, status)
		}
	}
	if status := send("alice"); status != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
	if status := send("bob"); status != fiber.StatusCreated {
		t.Fatalf("limit must be per owner, got %d", status)
	}

	mr.FastForward(time.Minute + time.Second)
	if status := send("alice"); status != fiber.StatusCreated {
		t.Fatalf("expected limit window to reset, got %d", status)
	}
}

func TestRequestIDIsGenerated(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestAuditRecordsFlowAndOwner(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(RequestID(), Audit(logging.NewWithWriter(&buf, "info")))
	app.Post("/flows/:id/digits", func(c *fiber.Ctx) error {
		c.Locals(OwnerKey, "alice")
		return fiber.NewError(fiber.StatusConflict, "full")
	})

	req := httptest.NewRequest(fiber.MethodPost, "/flows/f-1/digits", nil)
	req.Header.Set(requestIDHeader, "req-1")
	if _, err := app.Test(req); err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("decode audit record %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"level":      "WARN",
		"route":      "/flows/:id/digits",
		"flow_id":    "f-1",
		"owner_id":   "alice",
		"request_id": "req-1",
		"status":     float64(fiber.StatusConflict),
	}
	for k, v := range want {
		if record[k] != v {
			t.Fatalf("%s: expected %v, got %v", k, v, record[k])
		}
	}
}
