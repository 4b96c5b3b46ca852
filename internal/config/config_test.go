package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/ordenes-pipeline/internal/logging"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		assert func(t *testing.T, cfg Config)
	}{
		{
			name: "defaults: ok",
			assert: func(t *testing.T, cfg Config) {
				assert.Equal(t, ":8000", cfg.OrderSvcAddr)
				assert.Equal(t, ":8001", cfg.ProductSvcAddr)
				assert.Equal(t, 4, cfg.TaskConcurrency)
				assert.Equal(t, 1000, cfg.TaskMaxPerWorker)
				assert.Equal(t, 5*time.Second, cfg.TaskVerifyDelay)
				assert.Equal(t, 3*time.Second, cfg.TaskEmailDelay)
				assert.InDelta(t, 0.8, cfg.PaymentSuccessRate, 1e-9)
				assert.Equal(t, "example@example.com", cfg.ConfirmationEmailFallback)
			},
		},
		{
			name: "overrides: ok",
			env: map[string]string{
				"TASK_CONCURRENCY":     "8",
				"TASK_VERIFY_DELAY":    "250ms",
				"PAYMENT_SUCCESS_RATE": "1",
				"RABBITMQ_URL":         "amqp://u:p@rabbit:5672/",
			},
			assert: func(t *testing.T, cfg Config) {
				assert.Equal(t, 8, cfg.TaskConcurrency)
				assert.Equal(t, 250*time.Millisecond, cfg.TaskVerifyDelay)
				assert.InDelta(t, 1.0, cfg.PaymentSuccessRate, 1e-9)
				assert.Equal(t, "amqp://u:p@rabbit:5672/", cfg.RabbitMQURL)
			},
		},
		{
			name: "unparsable numbers fall back to defaults",
			env: map[string]string{
				"TASK_MAX_PER_WORKER": "lots",
				"TASK_EMAIL_DELAY":    "soon",
			},
			assert: func(t *testing.T, cfg Config) {
				assert.Equal(t, 1000, cfg.TaskMaxPerWorker)
				assert.Equal(t, 3*time.Second, cfg.TaskEmailDelay)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			tt.assert(t, Load())
		})
	}
}

func TestLoad_DoesNotLog(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	Load()
	assert.Zero(t, buf.Len())
}

func TestLog_CarriesServiceLogger(t *testing.T) {
	t.Setenv("TASK_CONCURRENCY", "6")

	var buf bytes.Buffer
	Load().Log(logging.New(&buf, "task-worker", "info"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "config loaded", rec["msg"])
	assert.Equal(t, "task-worker", rec["service"])
	assert.Equal(t, "config", rec["component"])
	assert.EqualValues(t, 6, rec["task_concurrency"])
}
