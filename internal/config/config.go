package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed kiosk.yaml
var kioskYAML []byte

type Config struct {
	Server    ServerConfig
	Embedding EmbeddingConfig
	Database  DatabaseConfig
	Kiosk     KioskConfig
	Legacy    LegacyConfig
}

type ServerConfig struct {
	Addr string // defaults to :8080
}

type EmbeddingConfig struct {
	URL        string  // face embedding model server (defaults to http://localhost:8000)
	Dim        int     // defaults to 128
	InputSize  int     // long-edge resize before upload (default 512)
	ScoreFloor float64 // minimum face detector score (default 0.2)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type KioskConfig struct {
	Threshold       float64       // match distance threshold
	RequiredMatches int           // consecutive matches before check-in
	ScanInterval    time.Duration // camera polling interval
	SuccessHold     time.Duration // success screen duration
	ErrorHold       time.Duration // error screen duration
	SuffixLength    int           // phone suffix digits for manual check-in
	CameraURL       string        // snapshot camera endpoint for headless mode
}

type LegacyConfig struct {
	DSN string // MariaDB DSN of the old front-desk system, for the import command
}

// kioskDefaults mirrors the embedded kiosk.yaml.
type kioskDefaults struct {
	Recognition struct {
		Threshold       float64 `yaml:"threshold"`
		RequiredMatches int     `yaml:"required_matches"`
		ScanIntervalMs  int     `yaml:"scan_interval_ms"`
		SuccessHoldMs   int     `yaml:"success_hold_ms"`
		ErrorHoldMs     int     `yaml:"error_hold_ms"`
		SuffixLength    int     `yaml:"suffix_length"`
	} `yaml:"recognition"`
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

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var defaults kioskDefaults
	if err := yaml.Unmarshal(kioskYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded kiosk.yaml: " + err.Error())
	}
	rec := defaults.Recognition

	return &Config{
		Server: ServerConfig{
			Addr: envString("GYMDESK_ADDR", ":8080"),
		},
		Embedding: EmbeddingConfig{
			URL:        envString("EMBEDDING_URL", "http://localhost:8000"),
			Dim:        envInt("EMBEDDING_DIM", 128),
			InputSize:  envInt("EMBEDDING_INPUT_SIZE", 512),
			ScoreFloor: envFloat("EMBEDDING_SCORE_FLOOR", 0.2),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Kiosk: KioskConfig{
			Threshold:       envFloat("KIOSK_THRESHOLD", rec.Threshold),
			RequiredMatches: envInt("KIOSK_REQUIRED_MATCHES", rec.RequiredMatches),
			ScanInterval:    time.Duration(envInt("KIOSK_SCAN_INTERVAL_MS", rec.ScanIntervalMs)) * time.Millisecond,
			SuccessHold:     time.Duration(envInt("KIOSK_SUCCESS_HOLD_MS", rec.SuccessHoldMs)) * time.Millisecond,
			ErrorHold:       time.Duration(envInt("KIOSK_ERROR_HOLD_MS", rec.ErrorHoldMs)) * time.Millisecond,
			SuffixLength:    envInt("KIOSK_SUFFIX_LENGTH", rec.SuffixLength),
			CameraURL:       os.Getenv("KIOSK_CAMERA_URL"),
		},
		Legacy: LegacyConfig{
			DSN: os.Getenv("LEGACY_DATABASE_DSN"),
		},
	}
}
