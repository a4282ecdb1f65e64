package mock

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Innie4/LaceandLegacy/internal/payment"
)

// declineSuffix marks test card numbers that always decline.
const declineSuffix = "0002"

// Provider is a simulated payment provider for development and testing.
// Charges succeed after a fixed processing delay unless the card number
// ends in the decline suffix.
type Provider struct {
	delay time.Duration
}

// NewProvider creates a new mock payment provider.
func NewProvider(delay time.Duration) *Provider {
	return &Provider{delay: delay}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mock"
}

// Charge simulates a payment charge.
func (p *Provider) Charge(ctx context.Context, input *payment.ChargeInput) (*payment.ChargeResult, error) {
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if strings.HasSuffix(input.CardNumber, declineSuffix) {
		return &payment.ChargeResult{
			ProviderPaymentID: "mock_pay_" + uuid.New().String(),
			Status:            payment.StatusFailed,
			FailureReason:     "card declined",
		}, nil
	}

	return &payment.ChargeResult{
		ProviderPaymentID: "mock_pay_" + uuid.New().String(),
		Status:            payment.StatusSucceeded,
	}, nil
}

// Refund simulates a payment refund that always succeeds.
func (p *Provider) Refund(ctx context.Context, _ *payment.RefundInput) (*payment.RefundResult, error) {
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &payment.RefundResult{
		ProviderRefundID: "mock_ref_" + uuid.New().String(),
		Status:           payment.StatusSucceeded,
	}, nil
}
