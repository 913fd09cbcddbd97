package pricing

import (
	"calc-server/internal/model"
	"errors"
	"fmt"
)

// CurrencyPercent marks a tier whose price is a percentage of the base price.
const CurrencyPercent = "PRC"

// ErrNoMatchingTier means no tier of the price type covers the quantity.
var ErrNoMatchingTier = errors.New("no matching price tier")

// NoMatchingTierError carries the lookup that failed.
type NoMatchingTierError struct {
	TypeID   int
	Quantity float64
}

func (e *NoMatchingTierError) Error() string {
	return fmt.Sprintf("%v: type %d, quantity %v", ErrNoMatchingTier, e.TypeID, e.Quantity)
}

func (e *NoMatchingTierError) Unwrap() error { return ErrNoMatchingTier }

// Contains reports whether quantity lies within the tier's inclusive bounds.
func Contains(t model.PriceTier, quantity float64) bool {
	if t.QuantityFrom != nil && quantity < *t.QuantityFrom {
		return false
	}
	if t.QuantityTo != nil && quantity > *t.QuantityTo {
		return false
	}
	return true
}

// Select returns the first tier of typeID containing quantity. Overlapping
// bands resolve to whichever comes first in the list.
func Select(tiers []model.PriceTier, typeID int, quantity float64) (model.PriceTier, error) {
	for _, t := range tiers {
		if t.TypeID == typeID && Contains(t, quantity) {
			return t, nil
		}
	}
	return model.PriceTier{}, &NoMatchingTierError{TypeID: typeID, Quantity: quantity}
}

// Price converts a tier into an amount. Percent tiers are relative to basePrice.
func Price(t model.PriceTier, basePrice float64) float64 {
	if t.Currency == CurrencyPercent {
		return basePrice * t.Price / 100
	}
	return t.Price
}

// Lookup selects the tier for quantity and converts it into an amount.
func Lookup(tiers []model.PriceTier, typeID int, quantity, basePrice float64) (float64, error) {
	t, err := Select(tiers, typeID, quantity)
	if err != nil {
		return 0, err
	}
	return Price(t, basePrice), nil
}
