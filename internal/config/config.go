package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Queue    QueueConfig    `yaml:"queue"`
	App      AppConfig      `yaml:"app"`
	Matching MatchingConfig `yaml:"matching"`
	Vision   VisionConfig   `yaml:"vision"`
	Video    VideoConfig    `yaml:"video"`
	Database DatabaseConfig `yaml:"database"`
	Media    MediaConfig    `yaml:"media"`
	Worker   WorkerConfig   `yaml:"worker"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// QueueConfig selects the job transport. Transport "redis" pops from a list
// with BRPOP; "nats" pulls from a JetStream work queue.
type QueueConfig struct {
	Transport   string        `yaml:"transport"`
	URL         string        `yaml:"url"`
	Key         string        `yaml:"key"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// AppConfig points at the owning application's API.
type AppConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Token        string        `yaml:"token"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// MatchingConfig.Threshold is a pointer so an explicit 0 (exact matches
// only) is kept instead of being replaced by the default.
type MatchingConfig struct {
	Threshold *float64 `yaml:"threshold"`
}

type VisionConfig struct {
	Engine             string  `yaml:"engine"`
	Model              string  `yaml:"model"`
	Upsample           *int    `yaml:"upsample"`
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	DetectorFile       string  `yaml:"detector_file"`
	EncoderFile        string  `yaml:"encoder_file"`
	EncoderInput       string  `yaml:"encoder_input"`
	EncoderOutput      string  `yaml:"encoder_output"`
	CascadeFile        string  `yaml:"cascade_file"`
	ORTLibrary         string  `yaml:"ort_library"`
}

// VideoConfig.FrameSkip is a pointer because 0 (analyze every frame) is a
// meaningful setting distinct from "unset".
type VideoConfig struct {
	FrameSkip   *int   `yaml:"frame_skip"`
	Decoder     string `yaml:"decoder"`
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
}

// DatabaseConfig locates the identity store. DSN is used by postgres and
// mysql, Path by sqlite.
type DatabaseConfig struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	Path        string `yaml:"path"`
	MaxConns    int    `yaml:"max_conns"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type MediaConfig struct {
	Backend string      `yaml:"backend"`
	Root    string      `yaml:"root"`
	MinIO   MinIOConfig `yaml:"minio"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type WorkerConfig struct {
	IdlePause time.Duration `yaml:"idle_pause"`
}

// MetricsConfig configures the ops server. APIKey guards the /v1
// introspection routes; empty disables the check.
type MetricsConfig struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"api_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file, loads an optional .env file from the
// same directory, and applies environment variable overrides. A missing
// config file is not an error when FACE_CONFIG_OPTIONAL is set, so the
// worker can run from the environment alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && os.Getenv("FACE_CONFIG_OPTIONAL") != "":
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Queue.Transport == "" {
		cfg.Queue.Transport = "redis"
	}
	if cfg.Queue.URL == "" {
		if cfg.Queue.Transport == "nats" {
			cfg.Queue.URL = "nats://127.0.0.1:4222"
		} else {
			cfg.Queue.URL = "redis://127.0.0.1:6379/0"
		}
	}
	if cfg.Queue.Key == "" {
		if cfg.Queue.Transport == "nats" {
			cfg.Queue.Key = "jobs.face"
		} else {
			cfg.Queue.Key = "queues:face"
		}
	}
	if cfg.Queue.PollTimeout == 0 {
		cfg.Queue.PollTimeout = 5 * time.Second
	}
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:8000/api"
	}
	if cfg.App.ReadTimeout == 0 {
		cfg.App.ReadTimeout = 30 * time.Second
	}
	if cfg.App.WriteTimeout == 0 {
		cfg.App.WriteTimeout = 60 * time.Second
	}
	if cfg.Matching.Threshold == nil {
		threshold := 0.6
		cfg.Matching.Threshold = &threshold
	}
	if cfg.Vision.Engine == "" {
		cfg.Vision.Engine = "dlib"
	}
	if cfg.Vision.Model == "" {
		cfg.Vision.Model = "hog"
	}
	if cfg.Vision.Upsample == nil {
		upsample := 1
		cfg.Vision.Upsample = &upsample
	}
	if cfg.Vision.ModelsDir == "" {
		cfg.Vision.ModelsDir = "models"
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.DetectorFile == "" {
		cfg.Vision.DetectorFile = "det_10g.onnx"
	}
	if cfg.Vision.EncoderFile == "" {
		cfg.Vision.EncoderFile = "face_encoder_128.onnx"
	}
	if cfg.Vision.EncoderInput == "" {
		cfg.Vision.EncoderInput = "data"
	}
	if cfg.Vision.EncoderOutput == "" {
		cfg.Vision.EncoderOutput = "fc1"
	}
	if cfg.Vision.CascadeFile == "" {
		cfg.Vision.CascadeFile = "facefinder"
	}
	if cfg.Video.FrameSkip == nil {
		skip := 5
		cfg.Video.FrameSkip = &skip
	}
	if cfg.Video.Decoder == "" {
		cfg.Video.Decoder = "ffmpeg"
	}
	if cfg.Video.FFmpegPath == "" {
		cfg.Video.FFmpegPath = "ffmpeg"
	}
	if cfg.Video.FFprobePath == "" {
		cfg.Video.FFprobePath = "ffprobe"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join("database", "database.sqlite")
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 4
	}
	if cfg.Media.Backend == "" {
		cfg.Media.Backend = "local"
	}
	if cfg.Media.Root == "" {
		cfg.Media.Root = filepath.Join("storage", "app", "public")
	}
	if cfg.Worker.IdlePause == 0 {
		cfg.Worker.IdlePause = 100 * time.Millisecond
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":8082"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// MaxDistance is the largest L2 distance accepted as a match.
func (m MatchingConfig) MaxDistance() float64 {
	if m.Threshold == nil {
		return 0.6
	}
	return *m.Threshold
}

// UpsampleFactor is how much frames are enlarged before detection.
func (v VisionConfig) UpsampleFactor() int {
	if v.Upsample == nil {
		return 1
	}
	return *v.Upsample
}

// DefaultFrameSkip is the frame skip used when the media has no override.
func (v VideoConfig) DefaultFrameSkip() int {
	if v.FrameSkip == nil {
		return 5
	}
	return *v.FrameSkip
}

// Validate rejects settings the worker cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Queue.Transport {
	case "redis", "nats":
	default:
		errs = append(errs, fmt.Errorf("queue.transport %q: want redis or nats", c.Queue.Transport))
	}
	if c.Queue.PollTimeout < 0 {
		errs = append(errs, fmt.Errorf("queue.poll_timeout must not be negative"))
	}
	if t := c.Matching.MaxDistance(); t < 0 || math.IsNaN(t) {
		errs = append(errs, fmt.Errorf("matching.threshold %v must not be negative", t))
	}
	switch c.Vision.Engine {
	case "dlib", "onnx":
	default:
		errs = append(errs, fmt.Errorf("vision.engine %q: want dlib or onnx", c.Vision.Engine))
	}
	switch c.Vision.Model {
	case "hog", "cnn":
	default:
		errs = append(errs, fmt.Errorf("vision.model %q: want hog or cnn", c.Vision.Model))
	}
	if n := c.Vision.UpsampleFactor(); n < 1 {
		errs = append(errs, fmt.Errorf("vision.upsample %d: must be an integer >= 1", n))
	}
	switch c.Video.Decoder {
	case "ffmpeg", "gocv":
	default:
		errs = append(errs, fmt.Errorf("video.decoder %q: want ffmpeg or gocv", c.Video.Decoder))
	}
	switch c.Database.Driver {
	case "postgres", "mysql":
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for %s", c.Database.Driver))
		}
	case "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want postgres, mysql, sqlite or memory", c.Database.Driver))
	}
	switch c.Media.Backend {
	case "local":
	case "minio":
		if c.Media.MinIO.Endpoint == "" || c.Media.MinIO.Bucket == "" {
			errs = append(errs, fmt.Errorf("media.minio.endpoint and media.minio.bucket are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("media.backend %q: want local or minio", c.Media.Backend))
	}
	if !strings.HasPrefix(c.App.BaseURL, "http://") && !strings.HasPrefix(c.App.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("app.base_url %q: want an http(s) URL", c.App.BaseURL))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	// Variable names used by the Laravel app's .env are accepted as aliases.
	setString(&cfg.Queue.Transport, "FACE_QUEUE_TRANSPORT")
	setString(&cfg.Queue.URL, "FACE_QUEUE_URL", "REDIS_URL")
	setString(&cfg.Queue.Key, "FACE_QUEUE_KEY", "LARAVEL_QUEUE_KEY")
	setDuration(&cfg.Queue.PollTimeout, "FACE_QUEUE_POLL_TIMEOUT")
	setString(&cfg.App.BaseURL, "FACE_APP_BASE_URL", "LARAVEL_API_BASE")
	setString(&cfg.App.Token, "FACE_APP_TOKEN", "CALLBACK_TOKEN")
	if v := lookup("FACE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.Threshold = &f
		}
	}
	setString(&cfg.Vision.Engine, "FACE_ENGINE")
	setString(&cfg.Vision.Model, "FACE_MODEL")
	setIntPtr(&cfg.Vision.Upsample, "FACE_UPSAMPLE")
	setString(&cfg.Vision.ModelsDir, "FACE_MODELS_DIR")
	setString(&cfg.Vision.ORTLibrary, "FACE_ORT_LIBRARY")
	setIntPtr(&cfg.Video.FrameSkip, "FACE_FRAME_SKIP", "FRAME_SKIP")
	setString(&cfg.Video.Decoder, "FACE_VIDEO_DECODER")
	setString(&cfg.Database.Driver, "FACE_DB_DRIVER")
	setString(&cfg.Database.DSN, "FACE_DB_DSN")
	setString(&cfg.Database.Path, "FACE_DB_PATH", "SQLITE_PATH")
	setString(&cfg.Media.Backend, "FACE_MEDIA_BACKEND")
	setString(&cfg.Media.Root, "FACE_MEDIA_ROOT")
	setString(&cfg.Media.MinIO.Endpoint, "FACE_MINIO_ENDPOINT")
	setString(&cfg.Media.MinIO.AccessKey, "FACE_MINIO_ACCESS_KEY")
	setString(&cfg.Media.MinIO.SecretKey, "FACE_MINIO_SECRET_KEY")
	setString(&cfg.Media.MinIO.Bucket, "FACE_MINIO_BUCKET")
	setString(&cfg.Metrics.Addr, "FACE_METRICS_ADDR")
	setString(&cfg.Metrics.APIKey, "FACE_OPS_API_KEY")
	setString(&cfg.Logging.Level, "FACE_LOG_LEVEL")
	setString(&cfg.Logging.Format, "FACE_LOG_FORMAT")
}

// lookup returns the first non-empty variable among keys. Surrounding quotes
// left over from hand-written .env files are stripped.
func lookup(keys ...string) string {
	for _, k := range keys {
		v := strings.TrimSpace(os.Getenv(k))
		if len(v) >= 2 && (v[0] == '"' && v[len(v)-1] == '"' || v[0] == '\'' && v[len(v)-1] == '\'') {
			v = strings.TrimSpace(v[1 : len(v)-1])
		}
		if v != "" {
			return v
		}
	}
	return ""
}

func setString(dst *string, keys ...string) {
	if v := lookup(keys...); v != "" {
		*dst = v
	}
}

// setIntPtr sets *dst only when a key is present, so an explicit 0 survives
// defaulting.
func setIntPtr(dst **int, keys ...string) {
	if v := lookup(keys...); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = &n
		}
	}
}

func setDuration(dst *time.Duration, keys ...string) {
	if v := lookup(keys...); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
