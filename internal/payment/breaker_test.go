package payment

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Innie4/LaceandLegacy/pkg/errors"
)

type flakyProvider struct {
	err     error
	charges int
}

func (p *flakyProvider) Name() string { return "flaky" }

func (p *flakyProvider) Charge(_ context.Context, _ *ChargeInput) (*ChargeResult, error) {
	p.charges++
	if p.err != nil {
		return nil, p.err
	}
	return &ChargeResult{ProviderPaymentID: "pay-1", Status: StatusSucceeded}, nil
}

func (p *flakyProvider) Refund(_ context.Context, _ *RefundInput) (*RefundResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &RefundResult{ProviderRefundID: "ref-1", Status: StatusSucceeded}, nil
}

func newTestBreaker(p Provider) *BreakerProvider {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
	return NewBreakerProvider(p, cfg, logger)
}

func TestBreakerProvider_PassesThroughSuccess(t *testing.T) {
	inner := &flakyProvider{}
	bp := newTestBreaker(inner)

	result, err := bp.Charge(context.Background(), &ChargeInput{Amount: 1000, Currency: "USD"})

	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, result.Status)
}

func TestBreakerProvider_OpensAfterRepeatedFailures(t *testing.T) {
	inner := &flakyProvider{err: errors.New("processor timeout")}
	bp := newTestBreaker(inner)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := bp.Charge(ctx, &ChargeInput{Amount: 1000, Currency: "USD"})
		require.Error(t, err)
	}

	// The breaker is now open; the provider is no longer called.
	callsBefore := inner.charges
	_, err := bp.Charge(ctx, &ChargeInput{Amount: 1000, Currency: "USD"})

	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	assert.Equal(t, callsBefore, inner.charges)
}

func TestBreakerProvider_DeclineDoesNotTrip(t *testing.T) {
	declined := &staticProvider{result: &ChargeResult{Status: StatusFailed, FailureReason: "card declined"}}
	bp := newTestBreaker(declined)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		result, err := bp.Charge(ctx, &ChargeInput{Amount: 1000, Currency: "USD"})
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, result.Status)
	}
}

type staticProvider struct {
	result *ChargeResult
}

func (p *staticProvider) Name() string { return "static" }

func (p *staticProvider) Charge(_ context.Context, _ *ChargeInput) (*ChargeResult, error) {
	return p.result, nil
}

func (p *staticProvider) Refund(_ context.Context, _ *RefundInput) (*RefundResult, error) {
	return &RefundResult{Status: StatusSucceeded}, nil
}
