package feed

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MinDecimalOdds is the lowest valid decimal price (a certainty).
const MinDecimalOdds = 1.0

var (
	// ErrInvalidConfidence is returned for confidence outside (0,100].
	ErrInvalidConfidence = errors.New("confidence must be in (0,100]")

	// ErrInvalidOdds is returned for decimal odds below 1.0.
	ErrInvalidOdds = errors.New("decimal odds must be >= 1.0")
)

var hundred = decimal.NewFromInt(100)

// OddsFromConfidence converts a confidence percentage to implied decimal
// odds, rounded to 2 places. The fixed rounding keeps cross-source
// comparisons deterministic.
func OddsFromConfidence(pct int) (float64, error) {
	if pct <= 0 || pct > 100 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidConfidence, pct)
	}
	odds := hundred.Div(decimal.NewFromInt(int64(pct))).Round(2)
	return odds.InexactFloat64(), nil
}

// ConfidenceFromOdds converts decimal odds to an implied confidence
// percentage, floored to an integer.
func ConfidenceFromOdds(odds float64) (int, error) {
	if odds < MinDecimalOdds {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidOdds, odds)
	}
	pct := hundred.Div(decimal.NewFromFloat(odds)).Floor()
	return int(pct.IntPart()), nil
}
