package purchase

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places stored for amounts.
const MoneyScale = 4

// maxMoney bounds the magnitude of an amount: NUMERIC(19, 4) leaves 15
// integer digits.
var maxMoney = decimal.New(1, 19-MoneyScale)

// checkMoney rejects amounts the NUMERIC(19, 4) columns would round or
// overflow.
func checkMoney(field string, d decimal.Decimal) error {
	if !d.Equal(d.Round(MoneyScale)) {
		return &ValidationError{Field: field, Reason: "must have at most " + strconv.Itoa(MoneyScale) + " decimal places"}
	}
	if d.Abs().GreaterThanOrEqual(maxMoney) {
		return &ValidationError{Field: field, Reason: "must be less than " + maxMoney.String() + " in magnitude"}
	}
	return nil
}

// checkInt4 rejects values outside the INTEGER column range.
func checkInt4(field string, v int) error {
	if v > math.MaxInt32 || v < math.MinInt32 {
		return &ValidationError{Field: field, Reason: "must fit in a 32-bit integer"}
	}
	return nil
}

func checkOptInt4(field string, v *int) error {
	if v == nil {
		return nil
	}
	return checkInt4(field, *v)
}
