package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Minio      MinioConfig
	Detector   DetectorConfig
	Index      IndexConfig
	Web        WebConfig
	Thresholds ThresholdsConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

type DetectorConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // embedding dimensionality, defaults to 128
}

type IndexConfig struct {
	File     string // index document path, defaults to indexed_data.json
	PhotoDir string // directory scanned for photos, defaults to data
}

type WebConfig struct {
	Host string
	Port int
}

type ThresholdsConfig struct {
	API            float64 `yaml:"api"`
	CLI            float64 `yaml:"cli"`
	HighConfidence float64 `yaml:"high_confidence"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a non-negative float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	var thresholds ThresholdsConfig
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// Embedded file, so this can only fail on a bad edit.
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	// Env vars override the embedded defaults.
	thresholds.API = envFloat("MATCH_THRESHOLD_API", thresholds.API)
	thresholds.CLI = envFloat("MATCH_THRESHOLD_CLI", thresholds.CLI)
	thresholds.HighConfidence = envFloat("MATCH_THRESHOLD_HIGH", thresholds.HighConfidence)

	return &Config{
		Minio: MinioConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    os.Getenv("MINIO_BUCKET"),
		},
		Detector: DetectorConfig{
			URL: envString("FACE_API_URL", "http://localhost:8000"),
			Dim: envInt("FACE_EMBEDDING_DIM", 128),
		},
		Index: IndexConfig{
			File:     envString("INDEX_FILE", "indexed_data.json"),
			PhotoDir: envString("PHOTO_DIR", "data"),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
		Thresholds: thresholds,
	}
}

// MinioComplete reports whether all required MinIO settings are present.
func (c *Config) MinioComplete() bool {
	m := c.Minio
	return m.Endpoint != "" && m.AccessKey != "" && m.SecretKey != "" && m.Bucket != ""
}

// MissingMinioVars lists the unset MinIO environment variables.
func (c *Config) MissingMinioVars() []string {
	var missing []string
	if c.Minio.Endpoint == "" {
		missing = append(missing, "MINIO_ENDPOINT")
	}
	if c.Minio.AccessKey == "" {
		missing = append(missing, "MINIO_ACCESS_KEY")
	}
	if c.Minio.SecretKey == "" {
		missing = append(missing, "MINIO_SECRET_KEY")
	}
	if c.Minio.Bucket == "" {
		missing = append(missing, "MINIO_BUCKET")
	}
	return missing
}
