// Package config loads mudra's layered configuration: built-in defaults, an
// optional YAML file and MUDRA_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

// EnvPrefix is prepended to environment overrides, e.g. MUDRA_PIPELINE_STRIDE.
const EnvPrefix = "MUDRA"

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	DataDir  string         `mapstructure:"data_dir"`
	Camera   CameraConfig   `mapstructure:"camera"`
	Detector DetectorConfig `mapstructure:"detector"`
	Log      LogConfig      `mapstructure:"log"`
	Model    ModelConfig    `mapstructure:"model"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Plugins  PluginsConfig  `mapstructure:"plugins"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Tray     TrayConfig     `mapstructure:"tray"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
}

// CameraConfig selects the camera and its idle behaviour. A zero
// MotionThreshold disables motion gating.
type CameraConfig struct {
	ID              int           `mapstructure:"id"`
	FPS             int           `mapstructure:"fps"`
	IdleFPS         int           `mapstructure:"idle_fps"`
	MotionThreshold float64       `mapstructure:"motion_threshold"`
	IdleAfter       time.Duration `mapstructure:"idle_after"`
}

type DetectorConfig struct {
	MaxHands        int     `mapstructure:"max_hands"`
	MinConfidence   float64 `mapstructure:"min_confidence"`
	MinTrackingConf float64 `mapstructure:"min_tracking_confidence"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ModelConfig locates the model metadata and the classifier.
type ModelConfig struct {
	// Meta is a file path or an http(s) URL.
	Meta       string           `mapstructure:"meta"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
}

// ClassifierConfig selects and configures the classifier backend.
type ClassifierConfig struct {
	Kind      string        `mapstructure:"kind"` // "process" or "http"
	Python    string        `mapstructure:"python"`
	Script    string        `mapstructure:"script"`
	ModelPath string        `mapstructure:"model_path"`
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// PipelineConfig holds the gesture pipeline tunables.
type PipelineConfig struct {
	SeqLen              int              `mapstructure:"seq_len"`
	FeatDim             int              `mapstructure:"feat_dim"`
	Stride              int              `mapstructure:"stride"`
	VoteWindow          int              `mapstructure:"vote_window"`
	ConfidenceThreshold float64          `mapstructure:"confidence_threshold"`
	Confidence          ConfidenceConfig `mapstructure:"confidence"`
	Queue               int              `mapstructure:"queue"`
}

type ConfidenceConfig struct {
	Mode    string  `mapstructure:"mode"`
	Offset  float64 `mapstructure:"offset"`
	Divisor float64 `mapstructure:"divisor"`
}

type PluginsConfig struct {
	Dir         string        `mapstructure:"dir"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// NATSConfig enables result publishing when URL is set.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type TrayConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("data_dir", "~/.mudra")
	v.SetDefault("camera.id", 0)
	v.SetDefault("camera.fps", 15)
	v.SetDefault("camera.idle_fps", 5)
	v.SetDefault("camera.motion_threshold", 0.0)
	v.SetDefault("camera.idle_after", 2*time.Second)
	det := detector.DefaultConfig()
	v.SetDefault("detector.max_hands", det.MaxHands)
	v.SetDefault("detector.min_confidence", det.MinConfidence)
	v.SetDefault("detector.min_tracking_confidence", det.MinTrackingConf)
	v.SetDefault("log.level", "info")
	v.SetDefault("model.meta", "model_meta.json")
	v.SetDefault("model.classifier.kind", "process")
	v.SetDefault("model.classifier.python", "")
	v.SetDefault("model.classifier.script", "")
	v.SetDefault("model.classifier.model_path", "model.onnx")
	v.SetDefault("model.classifier.url", "")
	v.SetDefault("model.classifier.timeout", 2*time.Second)
	v.SetDefault("pipeline.seq_len", 30)
	v.SetDefault("pipeline.feat_dim", 63)
	v.SetDefault("pipeline.stride", 2)
	v.SetDefault("pipeline.vote_window", 15)
	v.SetDefault("pipeline.confidence_threshold", 0.60)
	v.SetDefault("pipeline.confidence.mode", gesture.ConfidenceLinear)
	v.SetDefault("pipeline.confidence.offset", 5.0)
	v.SetDefault("pipeline.confidence.divisor", 10.0)
	v.SetDefault("pipeline.queue", 4)
	v.SetDefault("plugins.dir", "~/.mudra/plugins")
	v.SetDefault("plugins.timeout", 5*time.Second)
	v.SetDefault("plugins.min_interval", time.Second)
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "mudra.gestures")
	v.SetDefault("tray.enabled", false)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		// defaults always decode
		panic(err)
	}
	return cfg
}

// Load reads configuration from path, or from mudra.yaml in the working
// directory or ~/.mudra when path is empty. A missing default file is not an
// error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mudra")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".mudra"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.DataDir = ExpandHome(cfg.DataDir)
	cfg.Plugins.Dir = ExpandHome(cfg.Plugins.Dir)
	return &cfg, nil
}

// Validate rejects values the runtime cannot work with.
func (c *Config) Validate() error {
	if _, err := c.Pipeline.Gesture(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if c.Pipeline.Queue < 1 {
		return fmt.Errorf("pipeline: queue must be at least 1, got %d", c.Pipeline.Queue)
	}
	switch c.Model.Classifier.Kind {
	case "process":
	case "http":
		if c.Model.Classifier.URL == "" {
			return fmt.Errorf("model: classifier url is required for kind http")
		}
	default:
		return fmt.Errorf("model: unknown classifier kind %q", c.Model.Classifier.Kind)
	}
	if c.Model.Classifier.Timeout <= 0 {
		return fmt.Errorf("model: classifier timeout must be positive")
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera: fps must be positive, got %d", c.Camera.FPS)
	}
	if c.Camera.MotionThreshold < 0 || c.Camera.MotionThreshold > 100 {
		return fmt.Errorf("camera: motion_threshold must be a percentage, got %v", c.Camera.MotionThreshold)
	}
	return nil
}

// Gesture converts the tunables into a validated gesture.Config.
func (p PipelineConfig) Gesture() (gesture.Config, error) {
	conf, err := gesture.ParseConfidence(p.Confidence.Mode, p.Confidence.Offset, p.Confidence.Divisor)
	if err != nil {
		return gesture.Config{}, err
	}
	if p.Confidence.Divisor <= 0 {
		return gesture.Config{}, fmt.Errorf("confidence divisor must be positive, got %v", p.Confidence.Divisor)
	}
	cfg := gesture.Config{
		SeqLen:              p.SeqLen,
		FeatDim:             p.FeatDim,
		Stride:              p.Stride,
		VoteWindow:          p.VoteWindow,
		ConfidenceThreshold: p.ConfidenceThreshold,
		Confidence:          conf,
	}
	return cfg, cfg.Validate()
}

// Detector returns the hand detector settings.
func (d DetectorConfig) Detector() detector.Config {
	cfg := detector.DefaultConfig()
	cfg.MaxHands = d.MaxHands
	cfg.MinConfidence = d.MinConfidence
	cfg.MinTrackingConf = d.MinTrackingConf
	return cfg
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
