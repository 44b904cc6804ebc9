package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func passing(context.Context) error { return nil }

func TestHealthRegistry_Status(t *testing.T) {
	failing := func(context.Context) error { return errors.New("refused") }

	tests := []struct {
		name     string
		register func(*HealthRegistry)
		want     string
	}{
		{"no checks", func(*HealthRegistry) {}, StatusOK},
		{"all pass", func(r *HealthRegistry) {
			r.Register("postgres", Critical, passing)
			r.Register("redis", Degraded, passing)
		}, StatusOK},
		{"optional failure", func(r *HealthRegistry) {
			r.Register("postgres", Critical, passing)
			r.Register("primary_backend", Degraded, failing)
		}, StatusDegraded},
		{"critical failure wins", func(r *HealthRegistry) {
			r.Register("postgres", Critical, failing)
			r.Register("redis", Degraded, failing)
		}, StatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewHealthRegistry("test", time.Second)
			tt.register(r)

			report := r.Report(context.Background())

			assert.Equal(t, tt.want, report.Status)
			assert.Equal(t, tt.want != StatusDown, report.Healthy())
		})
	}
}

func TestHealthRegistry_TimeoutAppliesPerCheck(t *testing.T) {
	r := NewHealthRegistry("test", 20*time.Millisecond)
	r.Register("postgres", Critical, PingCheck(pingerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})))

	start := time.Now()
	report := r.Report(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), report.Checks["postgres"].Error)
	assert.True(t, report.Checks["postgres"].Critical)
}

func TestHealthRegistry_RegisterReplaces(t *testing.T) {
	r := NewHealthRegistry("test", 0)
	r.Register("redis", Critical, func(context.Context) error { return errors.New("down") })
	r.Register("redis", Degraded, passing)
	r.Register("postgres", Critical, passing)

	assert.Equal(t, []string{"postgres", "redis"}, r.Names())
	assert.Equal(t, StatusOK, r.Report(context.Background()).Status)
}

func TestHealthHandler(t *testing.T) {
	r := NewHealthRegistry("1.2.3", time.Second)
	r.Register("postgres", Critical, passing)
	r.Register("primary_backend", Degraded, func(context.Context) error { return errors.New("circuit open") })

	rec := httptest.NewRecorder()
	Health(r).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StatusDegraded, body.Status)
	assert.Equal(t, "1.2.3", body.Version)
	assert.Equal(t, "circuit open", body.Checks["primary_backend"].Error)

	r.Register("postgres", Critical, func(context.Context) error { return errors.New("down") })
	rec = httptest.NewRecorder()
	Health(r).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	Live(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
