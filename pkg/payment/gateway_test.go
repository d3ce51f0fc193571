package payment_test

import (
	"context"
	"testing"
	"time"

	"bistro/pkg/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGateway_AlwaysApproves(t *testing.T) {
	gw := payment.NewMockGateway(0)

	resp, err := gw.Charge(context.Background(), payment.Request{OrderID: "o1", Amount: decimal.NewFromInt(10), Method: "card"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "completed", resp.Status)
	assert.NotEmpty(t, resp.TransactionID)
}

func TestMockGateway_AlwaysDeclines(t *testing.T) {
	gw := payment.NewMockGateway(1)

	resp, err := gw.Charge(context.Background(), payment.Request{OrderID: "o1", Amount: decimal.NewFromInt(10), Method: "card"})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.FailureReason)
}

func TestMockGateway_HonoursContext(t *testing.T) {
	gw := payment.NewMockGateway(0)
	gw.Delay = time.Second
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Charge(ctx, payment.Request{OrderID: "o1"})

	assert.ErrorIs(t, err, context.Canceled)
}
