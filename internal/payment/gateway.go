package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ordenes-pipeline/internal/order"
)

// Authorization is the gateway's answer for a single charge.
type Authorization struct {
	Approved      bool
	TransactionID string
	ErrorCode     string
}

// Gateway stands in for a card processor.
type Gateway interface {
	Authorize(ctx context.Context, orderID int64, amount decimal.Decimal, method order.PaymentMethod) (Authorization, error)
}

// RandomGateway approves a fixed share of charges.
type RandomGateway struct {
	mu          sync.Mutex
	rnd         *rand.Rand
	successRate float64
}

func NewRandomGateway(successRate float64) *RandomGateway {
	return &RandomGateway{
		rnd:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		successRate: successRate,
	}
}

func (g *RandomGateway) Authorize(_ context.Context, _ int64, _ decimal.Decimal, _ order.PaymentMethod) (Authorization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rnd.Float64() < g.successRate {
		return Authorization{
			Approved:      true,
			TransactionID: fmt.Sprintf("TX-%08d", g.rnd.IntN(100_000_000)),
		}, nil
	}
	return Authorization{ErrorCode: fmt.Sprintf("ERR-%04d", g.rnd.IntN(10_000))}, nil
}

// FixedGateway always returns the same outcome.
type FixedGateway struct {
	Approve bool
	Err     error
}

func (g FixedGateway) Authorize(_ context.Context, orderID int64, _ decimal.Decimal, _ order.PaymentMethod) (Authorization, error) {
	if g.Err != nil {
		return Authorization{}, g.Err
	}
	if g.Approve {
		return Authorization{Approved: true, TransactionID: fmt.Sprintf("TX-%08d", orderID)}, nil
	}
	return Authorization{ErrorCode: "ERR-0001"}, nil
}
