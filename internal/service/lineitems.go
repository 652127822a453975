package service

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"techsolutions/backend/internal/domain"
)

var maxDiscount = decimal.NewFromInt(100)

// ValidateLineItems turns submitted quantities into line items, following the
// order of products. Quantities that are missing, non-numeric or not positive
// are dropped. Ids that match no product are ignored. An error is returned
// only when nothing is left.
func ValidateLineItems(products []domain.Product, quantities map[int64]domain.FormValue) ([]domain.LineItem, error) {
	lines := make([]domain.LineItem, 0, len(quantities))
	for _, product := range products {
		raw, ok := quantities[product.ID]
		if !ok {
			continue
		}
		qty, err := parseQuantity(raw)
		if err != nil || qty <= 0 {
			continue
		}
		lines = append(lines, domain.LineItem{Product: product, Quantity: qty})
	}

	if len(lines) == 0 {
		return nil, Violations{newViolation(ErrEmptyOrder, "quantities", 0, "select at least one product with a quantity greater than zero")}
	}
	return lines, nil
}

func parseQuantity(raw domain.FormValue) (int, error) {
	return strconv.Atoi(strings.TrimSpace(string(raw)))
}

// ParseDiscount reads a discount percentage. Blank means zero; anything
// outside 0..100 is rejected. The result is rounded to two places.
func ParseDiscount(raw domain.FormValue) (decimal.Decimal, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return decimal.Zero, nil
	}

	discount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, Violations{newViolation(ErrValidation, "discount_percent", 0, "discount must be a number")}
	}
	if discount.IsNegative() || discount.GreaterThan(maxDiscount) {
		return decimal.Zero, Violations{newViolation(ErrValidation, "discount_percent", 0, "discount must be between 0 and 100")}
	}
	return discount.Round(2), nil
}

func totalUnits(lines []domain.LineItem) int {
	units := 0
	for _, line := range lines {
		units += line.Quantity
	}
	return units
}

func productIDs(lines []domain.LineItem) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.Product.ID)
	}
	return ids
}
