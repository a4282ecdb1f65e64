package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	apperrors "github.com/Innie4/LaceandLegacy/pkg/errors"
)

// BreakerConfig holds configuration for the payment circuit breaker.
type BreakerConfig struct {
	// MaxRequests is the maximum number of requests allowed in the half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing internal counts.
	Interval time.Duration

	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration

	// FailureRatio is the ratio of failures to total requests that trips the breaker.
	FailureRatio float64

	// MinRequests is the minimum number of requests needed before the failure ratio is evaluated.
	MinRequests uint32
}

// DefaultBreakerConfig returns sensible defaults for the payment breaker.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// BreakerProvider wraps a Provider with circuit breaker protection. Provider
// transport errors count as failures; a declined charge is a normal result
// and does not trip the breaker.
type BreakerProvider struct {
	provider      Provider
	chargeBreaker *gobreaker.CircuitBreaker[*ChargeResult]
	refundBreaker *gobreaker.CircuitBreaker[*RefundResult]
	logger        *slog.Logger
}

// NewBreakerProvider wraps a payment provider with a circuit breaker.
func NewBreakerProvider(provider Provider, cfg BreakerConfig, logger *slog.Logger) *BreakerProvider {
	readyToTrip := func(counts gobreaker.Counts) bool {
		if counts.Requests < cfg.MinRequests {
			return false
		}
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return failureRatio >= cfg.FailureRatio
	}
	onStateChange := func(name string, from gobreaker.State, to gobreaker.State) {
		logger.Warn("payment circuit breaker state change",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}

	chargeBreaker := gobreaker.NewCircuitBreaker[*ChargeResult](gobreaker.Settings{
		Name:          provider.Name() + "-charge",
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   readyToTrip,
		OnStateChange: onStateChange,
	})

	refundBreaker := gobreaker.NewCircuitBreaker[*RefundResult](gobreaker.Settings{
		Name:          provider.Name() + "-refund",
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   readyToTrip,
		OnStateChange: onStateChange,
	})

	return &BreakerProvider{
		provider:      provider,
		chargeBreaker: chargeBreaker,
		refundBreaker: refundBreaker,
		logger:        logger,
	}
}

// Name returns the underlying provider name.
func (p *BreakerProvider) Name() string {
	return p.provider.Name()
}

// Charge processes a charge through the circuit breaker. When the breaker
// is open the caller receives a service-unavailable error instead of a
// slow failure.
func (p *BreakerProvider) Charge(ctx context.Context, input *ChargeInput) (*ChargeResult, error) {
	result, err := p.chargeBreaker.Execute(func() (*ChargeResult, error) {
		return p.provider.Charge(ctx, input)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.Unavailable("payment processor is temporarily unavailable")
		}
		return nil, err
	}
	return result, nil
}

// Refund processes a refund through the circuit breaker.
func (p *BreakerProvider) Refund(ctx context.Context, input *RefundInput) (*RefundResult, error) {
	result, err := p.refundBreaker.Execute(func() (*RefundResult, error) {
		return p.provider.Refund(ctx, input)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.Unavailable("payment processor is temporarily unavailable")
		}
		return nil, err
	}
	return result, nil
}
