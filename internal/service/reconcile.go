package service

import (
	"context"
	"slices"

	"techsolutions/backend/internal/domain"
	"techsolutions/backend/internal/store"
)

// stockLedger holds the inventory rows locked by one transaction and the
// quantities to write back when it commits.
type stockLedger struct {
	rows  map[int64]domain.Inventory
	dirty map[int64]bool
}

// lockStock locks the inventory rows of productIDs in ascending id order so
// concurrent transactions always acquire them in the same sequence.
func lockStock(ctx context.Context, tx store.Tx, productIDs []int64) (*stockLedger, error) {
	ids := slices.Clone(productIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	rows, err := tx.LockInventory(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &stockLedger{rows: rows, dirty: make(map[int64]bool, len(ids))}, nil
}

func (l *stockLedger) quantity(productID int64) (int, bool) {
	inv, ok := l.rows[productID]
	return inv.Quantity, ok
}

func (l *stockLedger) set(productID int64, quantity int) {
	inv := l.rows[productID]
	inv.ProductID = productID
	inv.Quantity = quantity
	l.rows[productID] = inv
	l.dirty[productID] = true
}

// reserve takes qty units of product for a new sale. A product without an
// inventory row counts as out of stock.
func (l *stockLedger) reserve(product domain.Product, qty int) (Violation, bool) {
	onHand, ok := l.quantity(product.ID)
	if !ok || onHand < qty {
		return newViolation(ErrInsufficientStock, "quantities", product.ID,
			"insufficient stock for %s: requested %d, available %d", product.Name, qty, onHand), false
	}
	l.set(product.ID, onHand-qty)
	return Violation{}, true
}

// reapply moves a committed line from oldQty to newQty. The previously
// committed amount is given back before the new amount is taken, so the
// stock after the edit is stock + oldQty - newQty and never negative.
func (l *stockLedger) reapply(product domain.Product, oldQty int, newQty int) (Violation, bool) {
	if newQty <= 0 {
		return newViolation(ErrInvalidQuantity, "quantities", product.ID,
			"quantity for %s must be greater than zero", product.Name), false
	}

	onHand, _ := l.quantity(product.ID)
	available := onHand + oldQty
	if newQty > available {
		return newViolation(ErrInsufficientStock, "quantities", product.ID,
			"insufficient stock for %s: requested %d, available %d", product.Name, newQty, available), false
	}
	l.set(product.ID, available-newQty)
	return Violation{}, true
}

func (l *stockLedger) flush(ctx context.Context, tx store.Tx) error {
	ids := make([]int64, 0, len(l.dirty))
	for id := range l.dirty {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		if err := tx.SetInventoryQuantity(ctx, id, l.rows[id].Quantity); err != nil {
			return err
		}
	}
	return nil
}
