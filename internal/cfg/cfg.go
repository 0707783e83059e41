// Package cfg loads and validates service configuration. A YAML file named
// by CONFIG_FILE is the primary source; every value can be overridden (or
// supplied entirely) through environment variables, which is how the
// containerized deployments run.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the flattened runtime configuration shared by the trainer
// and the prediction server.
type Settings struct {
	// Data inputs and outputs
	TrainPath   string
	TestPath    string
	OutputPath  string
	DataVersion string

	// Preprocessing
	IVMin          float64
	IVMax          float64
	MaxMissingRate float64
	MinBinFrac     float64
	MaxBins        int
	MaxPrebins     int
	Workers        int

	// Feature selection
	SelectionMethod string // kbest | sequential
	NFeatures       int    // 0 = auto (retain all survivors)

	// Model
	ModelName    string
	LearningRate float64
	Iterations   int

	// Artifact store
	ArtifactBackend string // file | bolt | registry
	ArtifactPath    string
	RegistryURL     string
	RegistryTimeout time.Duration

	// Serving
	Port           int
	RowStorePath   string
	RequestTimeout time.Duration
}

// ConfigFile mirrors the YAML layout.
type ConfigFile struct {
	Data struct {
		TrainPath  string `yaml:"trainPath"`
		TestPath   string `yaml:"testPath"`
		OutputPath string `yaml:"outputPath"`
		Version    string `yaml:"version"`
	} `yaml:"data"`

	Preprocess struct {
		IVMin          float64 `yaml:"ivMin"`
		IVMax          float64 `yaml:"ivMax"`
		MaxMissingRate float64 `yaml:"maxMissingRate"`
		MinBinFrac     float64 `yaml:"minBinFrac"`
		MaxBins        int     `yaml:"maxBins"`
		MaxPrebins     int     `yaml:"maxPrebins"`
		Workers        int     `yaml:"workers"`
	} `yaml:"preprocess"`

	Selection struct {
		Method    string `yaml:"method"`
		NFeatures string `yaml:"nFeatures"` // integer or "auto"
	} `yaml:"selection"`

	Model struct {
		Name         string  `yaml:"name"`
		LearningRate float64 `yaml:"learningRate"`
		Iterations   int     `yaml:"iterations"`
	} `yaml:"model"`

	Artifact struct {
		Backend         string `yaml:"backend"`
		Path            string `yaml:"path"`
		RegistryURL     string `yaml:"registryURL"`
		RegistryTimeout string `yaml:"registryTimeout"`
	} `yaml:"artifact"`

	Server struct {
		Port           int    `yaml:"port"`
		RowStorePath   string `yaml:"rowStorePath"`
		RequestTimeout string `yaml:"requestTimeout"`
	} `yaml:"server"`
}

// Load reads configuration from the YAML file named by CONFIG_FILE, or
// from environment variables alone when no file is configured.
func Load() (Settings, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	registryTimeout, err := time.ParseDuration(config.Artifact.RegistryTimeout)
	if err != nil {
		registryTimeout = 30 * time.Second
	}
	requestTimeout, err := time.ParseDuration(config.Server.RequestTimeout)
	if err != nil {
		requestTimeout = 10 * time.Second
	}

	settings := Settings{
		TrainPath:   getEnvOrDefault("TRAIN_PATH", config.Data.TrainPath),
		TestPath:    getEnvOrDefault("TEST_PATH", config.Data.TestPath),
		OutputPath:  getEnvOrDefault("OUTPUT_PATH", orDefault(config.Data.OutputPath, "data/processed")),
		DataVersion: getEnvOrDefault("DATA_VERSION", config.Data.Version),

		IVMin:          getFloatFromEnvOrConfig("IV_MIN", config.Preprocess.IVMin, 0.02),
		IVMax:          getFloatFromEnvOrConfig("IV_MAX", config.Preprocess.IVMax, 0.5),
		MaxMissingRate: getFloatFromEnvOrConfig("MAX_MISSING_RATE", config.Preprocess.MaxMissingRate, 0.1),
		MinBinFrac:     getFloatFromEnvOrConfig("MIN_BIN_FRAC", config.Preprocess.MinBinFrac, 0.05),
		MaxBins:        getIntFromEnvOrConfig("MAX_BINS", config.Preprocess.MaxBins, 10),
		MaxPrebins:     getIntFromEnvOrConfig("MAX_PREBINS", config.Preprocess.MaxPrebins, 20),
		Workers:        getIntFromEnvOrConfig("PREPROCESS_WORKERS", config.Preprocess.Workers, 0),

		SelectionMethod: getEnvOrDefault("SELECTION_METHOD", orDefault(config.Selection.Method, "kbest")),
		NFeatures:       parseNFeatures(getEnvOrDefault("N_FEATURES", config.Selection.NFeatures)),

		ModelName:    getEnvOrDefault("MODEL_NAME", orDefault(config.Model.Name, "underwriting_model")),
		LearningRate: getFloatFromEnvOrConfig("LEARNING_RATE", config.Model.LearningRate, 0.1),
		Iterations:   getIntFromEnvOrConfig("ITERATIONS", config.Model.Iterations, 300),

		ArtifactBackend: getEnvOrDefault("ARTIFACT_BACKEND", orDefault(config.Artifact.Backend, "file")),
		ArtifactPath:    getEnvOrDefault("ARTIFACT_PATH", orDefault(config.Artifact.Path, "data/artifacts")),
		RegistryURL:     getEnvOrDefault("REGISTRY_URL", config.Artifact.RegistryURL),
		RegistryTimeout: registryTimeout,

		Port:           getIntFromEnvOrConfig("PORT", config.Server.Port, 8000),
		RowStorePath:   getEnvOrDefault("ROW_STORE_PATH", config.Server.RowStorePath),
		RequestTimeout: requestTimeout,
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		TrainPath:   os.Getenv("TRAIN_PATH"),
		TestPath:    os.Getenv("TEST_PATH"),
		OutputPath:  getEnvOrDefault("OUTPUT_PATH", "data/processed"),
		DataVersion: os.Getenv("DATA_VERSION"),

		IVMin:          getFloatOrDefault("IV_MIN", 0.02),
		IVMax:          getFloatOrDefault("IV_MAX", 0.5),
		MaxMissingRate: getFloatOrDefault("MAX_MISSING_RATE", 0.1),
		MinBinFrac:     getFloatOrDefault("MIN_BIN_FRAC", 0.05),
		MaxBins:        getIntOrDefault("MAX_BINS", 10),
		MaxPrebins:     getIntOrDefault("MAX_PREBINS", 20),
		Workers:        getIntOrDefault("PREPROCESS_WORKERS", 0),

		SelectionMethod: getEnvOrDefault("SELECTION_METHOD", "kbest"),
		NFeatures:       parseNFeatures(os.Getenv("N_FEATURES")),

		ModelName:    getEnvOrDefault("MODEL_NAME", "underwriting_model"),
		LearningRate: getFloatOrDefault("LEARNING_RATE", 0.1),
		Iterations:   getIntOrDefault("ITERATIONS", 300),

		ArtifactBackend: getEnvOrDefault("ARTIFACT_BACKEND", "file"),
		ArtifactPath:    getEnvOrDefault("ARTIFACT_PATH", "data/artifacts"),
		RegistryURL:     os.Getenv("REGISTRY_URL"),
		RegistryTimeout: getDurationOrDefault("REGISTRY_TIMEOUT", 30*time.Second),

		Port:           getIntOrDefault("PORT", 8000),
		RowStorePath:   os.Getenv("ROW_STORE_PATH"),
		RequestTimeout: getDurationOrDefault("REQUEST_TIMEOUT", 10*time.Second),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

// parseNFeatures accepts an integer or "auto"; auto and unparseable values
// both mean "retain all survivors".
func parseNFeatures(v string) int {
	if v == "" || v == "auto" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return 0
}

func validateSettings(settings *Settings) error {
	if settings.IVMin < 0 || settings.IVMin >= settings.IVMax {
		return fmt.Errorf("IV bounds must satisfy 0 <= min < max, got [%f, %f]", settings.IVMin, settings.IVMax)
	}
	if settings.MaxMissingRate < 0 || settings.MaxMissingRate > 1 {
		return fmt.Errorf("max missing rate must be between 0 and 1, got %f", settings.MaxMissingRate)
	}
	if settings.MinBinFrac <= 0 || settings.MinBinFrac > 0.5 {
		return fmt.Errorf("min bin fraction must be between 0 and 0.5, got %f", settings.MinBinFrac)
	}
	if settings.MaxBins < 2 || settings.MaxBins > 100 {
		return fmt.Errorf("max bins must be between 2 and 100, got %d", settings.MaxBins)
	}
	if settings.MaxPrebins < settings.MaxBins {
		return fmt.Errorf("max prebins (%d) must be at least max bins (%d)", settings.MaxPrebins, settings.MaxBins)
	}
	if settings.SelectionMethod != "kbest" && settings.SelectionMethod != "sequential" {
		return fmt.Errorf("selection method must be kbest or sequential, got %q", settings.SelectionMethod)
	}
	if settings.LearningRate <= 0 || settings.LearningRate > 10 {
		return fmt.Errorf("learning rate must be between 0 and 10, got %f", settings.LearningRate)
	}
	if settings.Iterations <= 0 || settings.Iterations > 100000 {
		return fmt.Errorf("iterations must be between 1 and 100000, got %d", settings.Iterations)
	}
	switch settings.ArtifactBackend {
	case "file", "bolt":
		if settings.ArtifactPath == "" {
			return fmt.Errorf("artifact path is required for the %s backend", settings.ArtifactBackend)
		}
	case "registry":
		if settings.RegistryURL == "" {
			return fmt.Errorf("registry URL is required for the registry backend")
		}
	default:
		return fmt.Errorf("artifact backend must be file, bolt or registry, got %q", settings.ArtifactBackend)
	}
	if settings.Port < 1024 || settings.Port > 65535 {
		return fmt.Errorf("port must be between 1024 and 65535, got %d", settings.Port)
	}
	if settings.RequestTimeout < time.Second || settings.RequestTimeout > time.Minute {
		return fmt.Errorf("request timeout must be between 1s and 1m, got %v", settings.RequestTimeout)
	}
	return nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}
