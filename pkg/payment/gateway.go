package payment

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway is the external payment provider. A declined charge is reported
// through Response.Success, not through the error.
type Gateway interface {
	Charge(ctx context.Context, req Request) (*Response, error)
}

// Request describes a single charge.
type Request struct {
	OrderID    string          `json:"orderId"`
	CustomerID string          `json:"customerId"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
}

// Response is the provider's answer to a charge.
type Response struct {
	Success       bool      `json:"success"`
	TransactionID string    `json:"transactionId"`
	Status        string    `json:"status"`
	ProcessedAt   time.Time `json:"processedAt"`
	FailureReason string    `json:"failureReason,omitempty"`
}

// MockGateway approves charges except for a random FailureRate share.
type MockGateway struct {
	FailureRate float64
	Delay       time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockGateway returns a gateway that declines roughly failureRate (0.0 - 1.0) of charges.
func NewMockGateway(failureRate float64) *MockGateway {
	return &MockGateway{
		FailureRate: failureRate,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Charge simulates a provider round trip.
func (m *MockGateway) Charge(ctx context.Context, req Request) (*Response, error) {
	log.Printf("Mock payment gateway: charging order %s, amount %s via %s", req.OrderID, req.Amount.StringFixed(2), req.Method)

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("payment for order %s aborted: %w", req.OrderID, ctx.Err())
		}
	}

	m.mu.Lock()
	roll := m.rnd.Float64()
	m.mu.Unlock()

	if roll < m.FailureRate {
		return &Response{
			Success:       false,
			Status:        "failed",
			ProcessedAt:   time.Now(),
			FailureReason: "payment declined by provider",
		}, nil
	}

	return &Response{
		Success:       true,
		TransactionID: fmt.Sprintf("TXN_%s", uuid.New().String()[:8]),
		Status:        "completed",
		ProcessedAt:   time.Now(),
	}, nil
}
