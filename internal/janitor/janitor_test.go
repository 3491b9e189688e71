package janitor

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/latchpoint/edgeward/internal/cache"
	"github.com/latchpoint/edgeward/internal/ratelimit"
)

func TestStartStopDoesNotBlock(t *testing.T) {
	c := cache.New(4, time.Minute)
	l := ratelimit.New(ratelimit.Config{})
	logger := zerolog.Nop()

	j := New(c, l, logger, nil)
	j.Start()
	j.Stop()
}
