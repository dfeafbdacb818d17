package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	WebRTC WebRTCConfig
	Calls  CallsConfig
	Debug  DebugConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// RedisConfig holds Redis connection settings. An empty Addr disables the
// cross-instance event bridge.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// WebRTCConfig holds STUN/TURN ICE server URLs pushed to clients on connect.
type WebRTCConfig struct {
	ICEUrls []string // e.g. stun:stun.l.google.com:19302 (comma-separated in env)
}

// CallsConfig holds the call-session policy knobs.
type CallsConfig struct {
	AdmissionPolicy    string // "waiting_room" (default) or "open"
	CreatorLeave       string // "transfer" (default) or "delete"
	StaleAfterSec      int    // idle seconds before the janitor evicts a call
	JanitorIntervalSec int    // seconds between janitor sweeps
}

// DebugConfig gates operational endpoints that must not ship open.
type DebugConfig struct {
	Endpoints bool // expose /debug/calls
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		WebRTC: WebRTCConfig{
			ICEUrls: splitTrim(getEnv("WEBRTC_ICE_URLS", "stun:stun.l.google.com:19302"), ","),
		},
		Calls: CallsConfig{
			AdmissionPolicy:    getEnv("CALL_ADMISSION_POLICY", "waiting_room"),
			CreatorLeave:       getEnv("CALL_CREATOR_LEAVES", "transfer"),
			StaleAfterSec:      getEnvInt("CALL_STALE_AFTER_SEC", 3600),
			JanitorIntervalSec: getEnvInt("JANITOR_INTERVAL_SEC", 60),
		},
		Debug: DebugConfig{
			Endpoints: getEnvBool("DEBUG_ENDPOINTS", false),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
