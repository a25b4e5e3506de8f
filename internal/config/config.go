package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Extractor   ExtractorConfig
	Recognition RecognitionConfig
	Upload      UploadConfig
	Session     SessionConfig
	LogLevel    string
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type ExtractorConfig struct {
	URL string // Face extraction service URL, defaults to http://localhost:8000
}

type RecognitionConfig struct {
	Threshold    float64 `yaml:"threshold"`     // minimum cosine similarity for a match
	EmbeddingDim int     `yaml:"embedding_dim"` // expected embedding dimensions
}

type UploadConfig struct {
	Path              string   `yaml:"-"` // root directory for stored images
	MaxSizeBytes      int64    `yaml:"max_size_bytes"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	MinImageEdge      int      `yaml:"min_image_edge"`
	MaxImageEdge      int      `yaml:"max_image_edge"`
}

type SessionConfig struct {
	Secret        string `yaml:"-"`
	DurationHours int    `yaml:"duration_hours"`
}

// defaults mirrors the embedded defaults.yaml layout.
type defaults struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	Upload      UploadConfig      `yaml:"upload"`
	Session     SessionConfig     `yaml:"session"`
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

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	var def defaults
	if err := yaml.Unmarshal(defaultsYAML, &def); err != nil {
		// Embedded file, so this should never happen in practice.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	upload := def.Upload
	upload.Path = envString("UPLOAD_PATH", "./uploads")
	if v, err := strconv.ParseInt(os.Getenv("MAX_UPLOAD_SIZE"), 10, 64); err == nil && v > 0 {
		upload.MaxSizeBytes = v
	}

	session := def.Session
	session.Secret = os.Getenv("SESSION_SECRET")
	session.DurationHours = envInt("SESSION_DURATION_HOURS", session.DurationHours)

	return &Config{
		Server: ServerConfig{
			Host: envString("HTTP_HOST", "0.0.0.0"),
			Port: envInt("HTTP_PORT", 8080),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Extractor: ExtractorConfig{
			URL: os.Getenv("EXTRACTOR_URL"),
		},
		Recognition: RecognitionConfig{
			Threshold:    envFloat("FACE_RECOGNITION_THRESHOLD", def.Recognition.Threshold),
			EmbeddingDim: def.Recognition.EmbeddingDim,
		},
		Upload:   upload,
		Session:  session,
		LogLevel: envString("LOG_LEVEL", "info"),
	}
}
