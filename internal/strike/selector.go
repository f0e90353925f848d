package strike

import (
	"fmt"
	"math"
	"strings"

	"options-scalping-bot/internal/trade"
)

// Contract describes the option contract selected for a signal.
type Contract struct {
	Symbol     string          `json:"symbol"`
	Strike     int             `json:"strike"`
	Direction  trade.Direction `json:"direction"`
	OptionCode string          `json:"option_code"` // CE / PE
	Descriptor string          `json:"descriptor"`  // e.g. "BANKNIFTY45100CE"
}

// Capital bands controlling moneyness: large accounts take in-the-money
// strikes, small accounts out-of-the-money, everyone else at-the-money.
const (
	itmCapital = 50000
	otmCapital = 10000
)

// StepFor returns the strike step for an index symbol: 100 for the bank
// index, 50 otherwise.
func StepFor(symbol string) int {
	if strings.Contains(strings.ToLower(symbol), "bank") {
		return 100
	}
	return 50
}

// Select maps a spot-price signal plus capital into a concrete contract.
// Deterministic given the same inputs: spot rounds to the nearest strike
// step, then offsets one step ITM or OTM based on capital.
func Select(symbol string, spotPrice float64, dir trade.Direction, capital float64) Contract {
	step := StepFor(symbol)
	atm := int(math.Round(spotPrice/float64(step))) * step

	offset := 0
	switch {
	case capital > itmCapital:
		if dir == trade.Call {
			offset = -step
		} else {
			offset = step
		}
	case capital < otmCapital:
		if dir == trade.Call {
			offset = step
		} else {
			offset = -step
		}
	}

	strike := atm + offset
	code := "CE"
	if dir == trade.Put {
		code = "PE"
	}

	return Contract{
		Symbol:     symbol,
		Strike:     strike,
		Direction:  dir,
		OptionCode: code,
		Descriptor: fmt.Sprintf("%s%d%s", normalize(symbol), strike, code),
	}
}

// normalize strips the exchange segment prefix and spaces from an
// instrument key ("NSE_INDEX|Nifty Bank" -> "NIFTYBANK").
func normalize(symbol string) string {
	if i := strings.IndexByte(symbol, '|'); i >= 0 {
		symbol = symbol[i+1:]
	}
	return strings.ToUpper(strings.ReplaceAll(symbol, " ", ""))
}
