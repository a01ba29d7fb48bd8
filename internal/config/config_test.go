package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Queue.Transport)
	assert.Equal(t, "queues:face", cfg.Queue.Key)
	assert.Equal(t, 5*time.Second, cfg.Queue.PollTimeout)
	assert.Equal(t, 30*time.Second, cfg.App.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.App.WriteTimeout)
	assert.Equal(t, 0.6, cfg.Matching.MaxDistance())
	assert.Equal(t, "hog", cfg.Vision.Model)
	assert.Equal(t, 1, cfg.Vision.UpsampleFactor())
	assert.Equal(t, 5, cfg.Video.DefaultFrameSkip())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "local", cfg.Media.Backend)
}

func TestLoadKeepsExplicitZeroFrameSkip(t *testing.T) {
	cfg, err := Load(writeConfig(t, "video:\n  frame_skip: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Video.DefaultFrameSkip())
}

func TestLoadKeepsExplicitZeroThreshold(t *testing.T) {
	cfg, err := Load(writeConfig(t, "matching:\n  threshold: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Matching.MaxDistance())
}

func TestLoadRejectsZeroUpsample(t *testing.T) {
	_, err := Load(writeConfig(t, "vision:\n  upsample: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vision.upsample 0")

	t.Setenv("FACE_UPSAMPLE", "0")
	_, err = Load(writeConfig(t, "{}\n"))
	require.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
queue:
  transport: nats
  key: jobs.face
app:
  base_url: https://app.example.com/api
  token: secret
matching:
  threshold: 0.45
vision:
  engine: onnx
  model: cnn
  upsample: 2
database:
  driver: postgres
  dsn: postgres://u:p@db:5432/faces
`))
	require.NoError(t, err)
	assert.Equal(t, "nats", cfg.Queue.Transport)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Queue.URL)
	assert.Equal(t, "secret", cfg.App.Token)
	assert.Equal(t, 0.45, cfg.Matching.MaxDistance())
	assert.Equal(t, "onnx", cfg.Vision.Engine)
	assert.Equal(t, 2, cfg.Vision.UpsampleFactor())
}

func TestEnvOverridesAndAliases(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("LARAVEL_QUEUE_KEY", "queues:default")
	t.Setenv("FACE_THRESHOLD", "0.5")
	t.Setenv("FRAME_SKIP", "2")
	t.Setenv("SQLITE_PATH", `"/data/db.sqlite"`)
	t.Setenv("FACE_APP_TOKEN", "tok")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "redis://cache:6379/1", cfg.Queue.URL)
	assert.Equal(t, "queues:default", cfg.Queue.Key)
	assert.Equal(t, 0.5, cfg.Matching.MaxDistance())
	assert.Equal(t, 2, cfg.Video.DefaultFrameSkip())
	assert.Equal(t, "/data/db.sqlite", cfg.Database.Path)
	assert.Equal(t, "tok", cfg.App.Token)
}

func TestDotEnvNextToConfig(t *testing.T) {
	path := writeConfig(t, "{}\n")
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte("FACE_UPSAMPLE=3\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("FACE_UPSAMPLE") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Vision.UpsampleFactor())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad model", body: "vision:\n  model: retina\n"},
		{name: "bad upsample", body: "vision:\n  upsample: -1\n"},
		{name: "zero upsample", body: "vision:\n  upsample: 0\n"},
		{name: "negative threshold", body: "matching:\n  threshold: -0.1\n"},
		{name: "bad transport", body: "queue:\n  transport: sqs\n"},
		{name: "postgres without dsn", body: "database:\n  driver: postgres\n"},
		{name: "minio without bucket", body: "media:\n  backend: minio\n"},
		{name: "bad base url", body: "app:\n  base_url: localhost:8000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	t.Setenv("FACE_CONFIG_OPTIONAL", "1")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Queue.Transport)
}
