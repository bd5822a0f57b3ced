package trip

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jahua/data-warehouse/internal/events"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
)

func newHandlerApp(runner *Runner, publisher *events.Publisher, auth fiber.Handler) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app.Group("/runs"), runner, publisher, auth)
	return app
}

func passAuth(c *fiber.Ctx) error { return c.Next() }

func TestRunEndpointSuccess(t *testing.T) {
	runner, source, _ := newTestRunner(t, nil, RunnerOptions{})
	source.ExpectQuery(`SELECT vehicle_id, COALESCE\(provider_id, ''\), lat, lon, observed_at FROM vehicle_pings`).
		WillReturnRows(pgxmock.NewRows([]string{"vehicle_id", "provider_id", "lat", "lon", "observed_at"}))
	app := newHandlerApp(runner, nil, passAuth)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/runs", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var result RunResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Status != StatusSuccess || result.RunID == "" {
		t.Fatalf("result = %+v", result)
	}
}

func TestRunEndpointFailure(t *testing.T) {
	runner, source, _ := newTestRunner(t, nil, RunnerOptions{})
	source.ExpectQuery(`SELECT vehicle_id, COALESCE\(provider_id, ''\), lat, lon, observed_at FROM vehicle_pings`).
		WillReturnError(errQuery)
	app := newHandlerApp(runner, nil, passAuth)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/runs", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var result RunResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Status != StatusError || result.FailedStage != StageExtract {
		t.Fatalf("result = %+v", result)
	}
}

func TestRunEndpointRejectedByAuth(t *testing.T) {
	runner, _, _ := newTestRunner(t, nil, RunnerOptions{})
	deny := func(c *fiber.Ctx) error { return fiber.ErrUnauthorized }
	app := newHandlerApp(runner, nil, deny)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/runs", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestLatestEndpoint(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	publisher := events.NewPublisher(client)
	if err := publisher.PublishRun(context.Background(), RunResult{RunID: "run-42", Status: StatusSuccess}); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	runner, _, _ := newTestRunner(t, publisher, RunnerOptions{})
	app := newHandlerApp(runner, publisher, passAuth)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/runs/latest", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content type = %q", ct)
	}
	var stored RunResult
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stored.RunID != "run-42" {
		t.Fatalf("run id = %q, want run-42", stored.RunID)
	}
}

func TestLatestEndpointNoRuns(t *testing.T) {
	runner, _, _ := newTestRunner(t, nil, RunnerOptions{})
	app := newHandlerApp(runner, events.NewPublisher(nil), passAuth)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/runs/latest", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestLatestEndpointRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	publisher := events.NewPublisher(client)
	mr.Close()

	runner, _, _ := newTestRunner(t, publisher, RunnerOptions{})
	app := newHandlerApp(runner, publisher, passAuth)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/runs/latest", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}
