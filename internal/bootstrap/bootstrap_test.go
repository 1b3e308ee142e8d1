package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-intake/internal/common"
)

func testConfig(t *testing.T) *common.Config {
	return &common.Config{
		Database: common.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         filepath.Join(t.TempDir(), "orders.db"),
			LockTimeout: time.Second,
		},
		LLM:    common.LLMConfig{Provider: "openai"},
		Intake: common.IntakeConfig{Workers: 2, Timezone: "Asia/Tokyo", SeenTTL: time.Hour},
	}
}

func TestNew_WithStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), testConfig(t), Options{Persist: true}, logger)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.NotNil(t, a.DB)
	require.NotNil(t, a.Repo)
	require.NoError(t, a.DB.HealthCheck(context.Background(), time.Second))

	batches, err := a.Intake.Batches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestNew_WithoutStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), testConfig(t), Options{}, logger)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)
	_, err = a.Intake.Batches(context.Background())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "mysql"
	_, err := New(context.Background(), cfg, Options{}, slog.Default())
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	cfg = testConfig(t)
	cfg.Intake.LayoutPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = New(context.Background(), cfg, Options{}, slog.Default())
	assert.Error(t, err)
}
