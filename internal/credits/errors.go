package credits

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownModel          = errors.New("unknown generation model")
	ErrProfileNotInitialized = errors.New("profile not initialized")
	ErrInsufficientCredits   = errors.New("insufficient credits")
)

// InsufficientCreditsError carries the numbers the client needs to offer a top-up.
type InsufficientCreditsError struct {
	Cost    int
	Balance int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, have %d", e.Cost, e.Balance)
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// Shortfall is how many credits the user has to buy to afford the request.
func (e *InsufficientCreditsError) Shortfall() int {
	return e.Cost - e.Balance
}
