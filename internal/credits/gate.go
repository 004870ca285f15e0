package credits

import (
	"context"
	"fmt"
	"log/slog"
)

// Ledger reads and debits a user's credit balance.
//
// Balance returns nil when the profile does not exist or its credit balance
// was never initialized. Debit must be a single atomic conditional decrement:
// it subtracts amount only if the balance stays non-negative and reports
// ok=false, with nothing written, otherwise.
type Ledger interface {
	Balance(ctx context.Context, userID string) (*int, error)
	Debit(ctx context.Context, userID string, amount int) (remaining int, ok bool, err error)
}

// Authorization is the receipt of a successful debit.
type Authorization struct {
	Model     ModelCost
	Cost      int
	Remaining int
}

// Gate decides whether a metered generation may start and charges for it.
type Gate struct {
	costs  *CostTable
	ledger Ledger
	log    *slog.Logger
}

func NewGate(costs *CostTable, ledger Ledger, log *slog.Logger) *Gate {
	return &Gate{costs: costs, ledger: ledger, log: log}
}

func (g *Gate) Costs() *CostTable {
	return g.costs
}

// AuthorizeGeneration debits the model's cost from the user's balance exactly
// once, or returns ErrUnknownModel, ErrProfileNotInitialized or an
// *InsufficientCreditsError without touching the balance.
func (g *Gate) AuthorizeGeneration(ctx context.Context, userID, modelKey string) (*Authorization, error) {
	model, ok := g.costs.Lookup(modelKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, modelKey)
	}

	balance, err := g.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	if balance == nil {
		return nil, ErrProfileNotInitialized
	}
	if *balance < model.Credits {
		return nil, &InsufficientCreditsError{Cost: model.Credits, Balance: *balance}
	}

	remaining, ok, err := g.ledger.Debit(ctx, userID, model.Credits)
	if err != nil {
		return nil, fmt.Errorf("debit credits: %w", err)
	}
	if !ok {
		// Another request spent the credits between the read and the debit.
		current, err := g.ledger.Balance(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("read balance: %w", err)
		}
		if current == nil {
			return nil, ErrProfileNotInitialized
		}
		return nil, &InsufficientCreditsError{Cost: model.Credits, Balance: *current}
	}

	if g.log != nil {
		g.log.Info("generation authorized", "user", userID, "model", model.Key, "cost", model.Credits, "remaining", remaining)
	}
	return &Authorization{Model: model, Cost: model.Credits, Remaining: remaining}, nil
}
