package models

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxCartLines is the gateway's limit on line items per checkout session.
const MaxCartLines = 100

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrTooManyLines    = errors.New("cart exceeds the line item limit")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrNegativePrice   = errors.New("price must not be negative")
	ErrSubCentPrice    = errors.New("price must be a whole number of cents")
	ErrMissingIDs      = errors.New("line item is missing test, location or company id")
)

// LineItem is one test at one location as captured when it was added to the cart.
type LineItem struct {
	TestID       uuid.UUID       `json:"test_id"`
	LocationID   uuid.UUID       `json:"location_id"`
	CompanyID    uuid.UUID       `json:"company_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"price"`
	TestName     string          `json:"test_name,omitempty"`
	LocationName string          `json:"location_name,omitempty"`
}

// LineTotal is unit price times quantity.
func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartSnapshot is the ordered, client-held cart.
type CartSnapshot []LineItem

// Validate checks the cart is non-empty, within the line limit, and that every
// line has ids, a positive quantity and a non-negative price in whole cents.
// Whole-cent prices keep Total equal to the sum of the gateway line amounts.
func (c CartSnapshot) Validate() error {
	if len(c) == 0 {
		return ErrEmptyCart
	}
	if len(c) > MaxCartLines {
		return ErrTooManyLines
	}
	for _, l := range c {
		if l.TestID == uuid.Nil || l.LocationID == uuid.Nil || l.CompanyID == uuid.Nil {
			return ErrMissingIDs
		}
		if l.Quantity < 1 {
			return ErrInvalidQuantity
		}
		if l.UnitPrice.IsNegative() {
			return ErrNegativePrice
		}
		if !l.UnitPrice.Equal(l.UnitPrice.Round(2)) {
			return ErrSubCentPrice
		}
	}
	return nil
}

// Total recomputes the sum of unit price times quantity.
func (c CartSnapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c {
		total = total.Add(l.LineTotal())
	}
	return total
}

// ToMinorUnits converts an amount to cents, rounding half up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts cents back to a decimal amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
