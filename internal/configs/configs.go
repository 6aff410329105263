/*
Package configs is responsible for loading and parsing the application's configuration settings.

It configures server parameters by reading operating system environment variables,
including the running environment, port, CORS allowed origins, session lifetime,
and the room grace-period/cleanup timings.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig contains all configuration parameters required for the application to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string

	// SessionTTL is how long an idle session stays valid before it expires.
	SessionTTL time.Duration

	// RoomGracePeriod is the delay between a room losing its last live
	// connection and the room being deleted, during which a reconnect
	// is honored.
	RoomGracePeriod time.Duration

	// RoomSweepInterval is how often the periodic idle-room sweep runs.
	RoomSweepInterval time.Duration

	// RoomMaxIdle is the age past which an empty, ended or never-started
	// room is collected by the periodic sweep.
	RoomMaxIdle time.Duration
}

// LoadConfig reads and parses the application configuration from environment variables.
// It provides default values for each configuration item and performs necessary type conversions and validation.
// It returns a pointer to the AppConfig struct and any error encountered.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	// Environment
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// Port
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	cfg.Port = port

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// --- Security Settings ---
	// AllowedOrigins
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr != "" {
		origins := strings.Split(originsStr, ",")
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{}
	}

	// --- Session Settings ---
	sessionTTLHours, err := intFromEnv("SESSION_TTL_HOURS", 24)
	if err != nil {
		return nil, err
	}
	if sessionTTLHours <= 0 {
		return nil, fmt.Errorf("SESSION_TTL_HOURS must be positive, got %d", sessionTTLHours)
	}
	cfg.SessionTTL = time.Duration(sessionTTLHours) * time.Hour

	// --- Room Lifetime Settings ---
	gracePeriodSeconds, err := intFromEnv("ROOM_GRACE_PERIOD_SECONDS", 1800)
	if err != nil {
		return nil, err
	}
	if gracePeriodSeconds <= 0 {
		return nil, fmt.Errorf("ROOM_GRACE_PERIOD_SECONDS must be positive, got %d", gracePeriodSeconds)
	}
	cfg.RoomGracePeriod = time.Duration(gracePeriodSeconds) * time.Second

	sweepIntervalSeconds, err := intFromEnv("ROOM_SWEEP_INTERVAL_SECONDS", 600)
	if err != nil {
		return nil, err
	}
	if sweepIntervalSeconds <= 0 {
		return nil, fmt.Errorf("ROOM_SWEEP_INTERVAL_SECONDS must be positive, got %d", sweepIntervalSeconds)
	}
	cfg.RoomSweepInterval = time.Duration(sweepIntervalSeconds) * time.Second

	maxIdleSeconds, err := intFromEnv("ROOM_MAX_IDLE_SECONDS", 3600)
	if err != nil {
		return nil, err
	}
	if maxIdleSeconds <= 0 {
		return nil, fmt.Errorf("ROOM_MAX_IDLE_SECONDS must be positive, got %d", maxIdleSeconds)
	}
	cfg.RoomMaxIdle = time.Duration(maxIdleSeconds) * time.Second

	return cfg, nil
}

// intFromEnv reads an integer environment variable, falling back to def when unset.
func intFromEnv(key string, def int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return def, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}

	return value, nil
}
