// Package config loads salescope settings.
//
// Values come from Default, then an optional YAML file, then environment
// variables prefixed with SALESCOPE_ (SALESCOPE_SERVER_ADDR,
// SALESCOPE_COMPARE_FOLDS, ...). The result is checked with validator tags.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/YuminosukeSato/salescope/cleaning"
	"github.com/YuminosukeSato/salescope/compare"
	"github.com/YuminosukeSato/salescope/features"
	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "SALESCOPE"

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Compare  compare.Options  `yaml:"compare" envconfig:"COMPARE"`
	Cleaning cleaning.Options `yaml:"cleaning" envconfig:"CLEANING"`
	Features features.Options `yaml:"features" envconfig:"FEATURES"`
	Models   ModelsConfig     `yaml:"models" envconfig:"MODELS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	AllowedOrigins  []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" validate:"min=1"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json console"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	// ModelDir receives <model_slug>.json bundles and comparison_results.json.
	ModelDir  string `yaml:"model_dir" envconfig:"MODEL_DIR" validate:"required"`
	UploadDir string `yaml:"upload_dir" envconfig:"UPLOAD_DIR" validate:"required"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
}

// ModelsConfig holds the hyperparameters of the compared models.
type ModelsConfig struct {
	Linear LinearConfig `yaml:"linear" envconfig:"LINEAR"`
	Tree   TreeConfig   `yaml:"tree" envconfig:"TREE"`
	SVR    SVRConfig    `yaml:"svr" envconfig:"SVR"`
}

// LinearConfig configures ordinary least squares.
type LinearConfig struct {
	FitIntercept bool `yaml:"fit_intercept" envconfig:"FIT_INTERCEPT"`
}

// TreeConfig configures the decision tree. MaxDepth 0 means unlimited.
type TreeConfig struct {
	MaxDepth        int    `yaml:"max_depth" envconfig:"MAX_DEPTH" validate:"gte=0"`
	MinSamplesSplit int    `yaml:"min_samples_split" envconfig:"MIN_SAMPLES_SPLIT" validate:"gte=2"`
	MinSamplesLeaf  int    `yaml:"min_samples_leaf" envconfig:"MIN_SAMPLES_LEAF" validate:"gte=1"`
	RandomState     uint64 `yaml:"random_state" envconfig:"RANDOM_STATE"`
}

// SVRConfig configures support vector regression.
type SVRConfig struct {
	C       float64 `yaml:"c" envconfig:"C" validate:"gt=0"`
	Epsilon float64 `yaml:"epsilon" envconfig:"EPSILON" validate:"gte=0"`
	Kernel  string  `yaml:"kernel" envconfig:"KERNEL" validate:"oneof=linear poly rbf sigmoid"`
	Gamma   string  `yaml:"gamma" envconfig:"GAMMA" validate:"required"`
	Degree  int     `yaml:"degree" envconfig:"DEGREE" validate:"gte=1"`
	Coef0   float64 `yaml:"coef0" envconfig:"COEF0"`
	Tol     float64 `yaml:"tol" envconfig:"TOL" validate:"gt=0"`
	MaxIter int     `yaml:"max_iter" envconfig:"MAX_ITER" validate:"gte=1"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  32 << 20,
			AllowedOrigins:  []string{"*"},
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Paths: PathsConfig{
			ModelDir:  "models",
			UploadDir: "uploads",
			OutputDir: "output",
		},
		Compare:  compare.DefaultOptions(),
		Cleaning: cleaning.DefaultOptions(),
		Features: features.DefaultOptions(),
		Models: ModelsConfig{
			Linear: LinearConfig{FitIntercept: true},
			Tree:   TreeConfig{MaxDepth: 10, MinSamplesSplit: 5, MinSamplesLeaf: 2, RandomState: 42},
			SVR: SVRConfig{
				C: 1.0, Epsilon: 0.1, Kernel: "rbf", Gamma: "scale",
				Degree: 3, Coef0: 0, Tol: 1e-3, MaxIter: 1000,
			},
		},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to load config from env")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg; keys absent from the file
// keep their current values.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return nil
}

var validate = validator.New()

// Validate checks the validator tags of every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return errors.NewValidationError(first.Namespace(), "failed the '"+first.Tag()+"' rule", first.Value())
		}
		return errors.Wrap(err, "config validation failed")
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from files into the environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}
	return nil
}
