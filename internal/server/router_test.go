package server

import (
	"bytes"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

func TestNewAppSetsRequestID(t *testing.T) {
	app := newTestApp(t)
	app.Get("/ping", func(c fiber.Ctx) error {
		if RequestID(c) == "" {
			t.Errorf("request id should be available to handlers")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "http://pagecache.local/ping", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204 status, got %d", resp.StatusCode)
	}
	if reqID := resp.Header.Get("X-Request-ID"); reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestNewAppRendersErrorsAsJSON(t *testing.T) {
	app := newTestApp(t)
	app.Get("/boom", func(c fiber.Ctx) error {
		return errors.New("kaboom")
	})
	app.Get("/teapot", func(c fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "http://pagecache.local/boom", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"status":"error"`)) || !bytes.Contains(body, []byte(`"timestamp"`)) {
		t.Fatalf("unexpected error body %s", string(body))
	}

	resp, err = app.Test(httptest.NewRequest("GET", "http://pagecache.local/teapot", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusTeapot {
		t.Fatalf("expected fiber error code to be kept, got %d", resp.StatusCode)
	}
}

func TestNewAppRecoversFromPanics(t *testing.T) {
	app := newTestApp(t)
	app.Get("/panic", func(c fiber.Ctx) error {
		panic("boom")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "http://pagecache.local/panic", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", resp.StatusCode)
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	if _, err := NewApp(AppOptions{ListenPort: 5000}); err == nil {
		t.Fatalf("expected error without logger")
	}
	if _, err := NewApp(AppOptions{Logger: logrus.New()}); err == nil {
		t.Fatalf("expected error without port")
	}
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := NewApp(AppOptions{Logger: logger, ListenPort: 5000})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app
}
