// Package circuitbreaker stops calling a failing upstream (the Avalanche RPC) until it recovers.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Arrogantx/slapper/internal/logging"
)

// State is the breaker position
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen matches every rejection made while the breaker is open or probing
var ErrCircuitOpen = errors.New("circuit breaker is open")

// OpenError is returned instead of calling the upstream
type OpenError struct {
	Name string
	// RetryAfter is how long until the breaker lets a probe through
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %s is open, retry in %s", e.Name, e.RetryAfter.Round(time.Second))
}

// Is lets errors.Is(err, ErrCircuitOpen) match
func (e *OpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// Config configures a breaker
type Config struct {
	Name string
	// FailureThreshold consecutive failures open the circuit
	FailureThreshold int
	// Cooldown is the time spent open before probing
	Cooldown time.Duration
	// HalfOpenProbes successful probes close the circuit again
	HalfOpenProbes int
	// OnStateChange is called with the lock released
	OnStateChange func(name string, from, to State)
}

// DefaultConfig opens after 5 consecutive failures and probes after 30s
func DefaultConfig(name string) *Config {
	return &Config{
		Name:             name,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenProbes:   1,
	}
}

// CircuitBreaker counts consecutive upstream failures
type CircuitBreaker struct {
	cfg    Config
	logger *logging.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       State
	openedAt    time.Time
	consecutive int
	probes      int // in flight while half-open
	probeWins   int
	totalCalls  int
	rejected    int
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(cfg *Config, logger *logging.Logger) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultConfig("default")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	c := *cfg
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.HalfOpenProbes <= 0 {
		c.HalfOpenProbes = 1
	}
	return &CircuitBreaker{
		cfg:    c,
		logger: logger.WithField("circuitBreaker", c.Name),
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute runs fn unless the circuit is open. A call whose context was
// cancelled is not counted either way.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		cb.abandon()
		return err
	}

	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	var transition func()
	defer func() {
		cb.mu.Unlock()
		if transition != nil {
			transition()
		}
	}()

	if cb.state == StateOpen {
		wait := cb.cfg.Cooldown - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			cb.rejected++
			return &OpenError{Name: cb.cfg.Name, RetryAfter: wait}
		}
		transition = cb.moveTo(StateHalfOpen)
	}

	if cb.state == StateHalfOpen {
		if cb.probes >= cb.cfg.HalfOpenProbes {
			cb.rejected++
			return &OpenError{Name: cb.cfg.Name}
		}
		cb.probes++
	}
	return nil
}

// abandon returns a half-open probe slot without a verdict
func (cb *CircuitBreaker) abandon() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.probes > 0 {
		cb.probes--
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	var transition func()
	defer func() {
		cb.mu.Unlock()
		if transition != nil {
			transition()
		}
	}()

	cb.totalCalls++
	if err == nil {
		cb.consecutive = 0
		if cb.state == StateHalfOpen {
			cb.probeWins++
			if cb.probeWins >= cb.cfg.HalfOpenProbes {
				transition = cb.moveTo(StateClosed)
			}
		}
		return
	}

	cb.consecutive++
	switch {
	case cb.state == StateHalfOpen:
		transition = cb.moveTo(StateOpen)
	case cb.state == StateClosed && cb.consecutive >= cb.cfg.FailureThreshold:
		transition = cb.moveTo(StateOpen)
	}
}

// moveTo switches state under the lock and returns the notification to run after unlocking
func (cb *CircuitBreaker) moveTo(to State) func() {
	from := cb.state
	cb.state = to
	cb.probes = 0
	cb.probeWins = 0
	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
	case StateClosed:
		cb.consecutive = 0
	}

	logger := cb.logger.WithFields(map[string]interface{}{
		"from":        string(from),
		"to":          string(to),
		"consecutive": cb.consecutive,
	})
	hook := cb.cfg.OnStateChange
	name := cb.cfg.Name
	return func() {
		if to == StateOpen {
			logger.Warn("Circuit breaker opened")
		} else {
			logger.Info("Circuit breaker state changed")
		}
		if hook != nil {
			hook(name, from, to)
		}
	}
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats is a snapshot of the breaker
type Stats struct {
	Name             string    `json:"name"`
	State            State     `json:"state"`
	ConsecutiveFails int       `json:"consecutiveFails"`
	TotalCalls       int       `json:"totalCalls"`
	Rejected         int       `json:"rejected"`
	OpenedAt         time.Time `json:"openedAt,omitempty"`
}

// GetStats returns a snapshot of the breaker
func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		Name:             cb.cfg.Name,
		State:            cb.state,
		ConsecutiveFails: cb.consecutive,
		TotalCalls:       cb.totalCalls,
		Rejected:         cb.rejected,
		OpenedAt:         cb.openedAt,
	}
}

// Reset closes the circuit
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	notify := cb.moveTo(StateClosed)
	cb.mu.Unlock()
	notify()
}
