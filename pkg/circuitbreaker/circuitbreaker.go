// Package circuitbreaker builds the breakers that guard outbound calls.
package circuitbreaker

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const (
	DefaultMaxFailures = 5
	DefaultTimeout     = 30 * time.Second
)

type Settings struct {
	Name string
	// MaxFailures is the run of consecutive failures that opens the breaker.
	MaxFailures uint32
	// Timeout is how long the breaker stays open before a trial request.
	Timeout time.Duration
}

func NewCircuitBreaker(settings Settings) *gobreaker.CircuitBreaker {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = DefaultMaxFailures
	}
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    settings.Name,
		Timeout: settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
}
