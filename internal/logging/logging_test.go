package logging

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/relaywave/bsp-gateway/internal/config"
)

func TestSetup_DevModeDoesNotPanic(t *testing.T) {
	defer func() { log.Logger = zerolog.New(nil) }()
	Setup(&config.Config{Env: "dev"})
}

func TestSetup_ProductionModeDoesNotPanic(t *testing.T) {
	defer func() { log.Logger = zerolog.New(nil) }()
	Setup(&config.Config{Env: "production"})
}

func TestSetup_SetsRFC3339NanoTimeFormat(t *testing.T) {
	defer func() { log.Logger = zerolog.New(nil) }()
	Setup(&config.Config{Env: "production"})
	if zerolog.TimeFieldFormat != time.RFC3339Nano {
		t.Fatalf("TimeFieldFormat = %q, want %q", zerolog.TimeFieldFormat, time.RFC3339Nano)
	}
}
