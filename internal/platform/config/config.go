package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration for the personhood registry.
type Server struct {
	Addr       string
	AdminToken string

	// Ring and onboarding queue geometry.
	MaxRingSize    uint32
	QueuePageSize  uint32
	OnboardingSize uint32

	// Scheduler pacing. Every StepInterval the scheduler runs one discrete
	// step with StepBudget abstract cost units.
	StepInterval time.Duration
	StepBudget   int64
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("PERSONRING_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	adminToken := os.Getenv("PERSONRING_ADMIN_TOKEN")
	if adminToken == "" {
		// Use a default for development - should be overridden in production
		adminToken = "dev-admin-token-change-in-production"
	}

	interval := 6 * time.Second
	if raw := os.Getenv("PERSONRING_STEP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			interval = d
		}
	}

	return Server{
		Addr:           addr,
		AdminToken:     adminToken,
		MaxRingSize:    uintEnv("PERSONRING_MAX_RING_SIZE", 40),
		QueuePageSize:  uintEnv("PERSONRING_QUEUE_PAGE_SIZE", 40),
		OnboardingSize: uintEnv("PERSONRING_ONBOARDING_SIZE", 10),
		StepInterval:   interval,
		StepBudget:     int64(uintEnv("PERSONRING_STEP_BUDGET", 1000)),
	}
}

func uintEnv(name string, fallback uint32) uint32 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		return fallback
	}
	return uint32(v)
}
