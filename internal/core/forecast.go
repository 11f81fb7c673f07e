package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultForecastPeriods is how many months a projection covers.
const DefaultForecastPeriods = 6

// ForecastPoint is one step of a balance projection. Balance is in whole
// rupees, never negative. Points are ephemeral and regenerated per request.
type ForecastPoint struct {
	Month   string `json:"month"`
	Balance int64  `json:"balance"`
}

var monthNames = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// Project compounds the balance by (1 + rate) per period, rounding each
// step to whole rupees before the next and clamping at zero. Month labels
// wrap forward from now's month regardless of the projected values.
//
// The function is pure: all non-determinism lives upstream where the rate
// is estimated.
func Project(balance Money, rate decimal.Decimal, periods int, now time.Time) []ForecastPoint {
	if periods <= 0 {
		periods = DefaultForecastPeriods
	}
	factor := decimal.NewFromInt(1).Add(rate)
	bal := decimal.New(balance.Paise, -2)
	monthIdx := int(now.Month()) - 1

	points := make([]ForecastPoint, 0, periods)
	for i := 0; i < periods; i++ {
		bal = bal.Mul(factor).Round(0)
		if bal.IsNegative() {
			bal = decimal.Zero
		}
		points = append(points, ForecastPoint{
			Month:   monthNames[(monthIdx+i+1)%12],
			Balance: bal.IntPart(),
		})
	}
	return points
}
