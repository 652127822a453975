package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techsolutions/backend/internal/domain"
)

func ledgerWith(rows ...domain.Inventory) *stockLedger {
	l := &stockLedger{rows: map[int64]domain.Inventory{}, dirty: map[int64]bool{}}
	for _, r := range rows {
		l.rows[r.ProductID] = r
	}
	return l
}

func TestReserveDecrementsOnlyWhenStockSuffices(t *testing.T) {
	p := domain.Product{ID: 1, Name: "Keyboard"}
	l := ledgerWith(domain.Inventory{ProductID: 1, Quantity: 10})

	_, ok := l.reserve(p, 4)
	require.True(t, ok)
	qty, _ := l.quantity(1)
	assert.Equal(t, 6, qty)

	v, ok := l.reserve(p, 7)
	require.False(t, ok)
	assert.ErrorIs(t, v, ErrInsufficientStock)
	assert.Equal(t, int64(1), v.ProductID)
	qty, _ = l.quantity(1)
	assert.Equal(t, 6, qty)

	_, ok = l.reserve(p, 6)
	require.True(t, ok)
	qty, _ = l.quantity(1)
	assert.Equal(t, 0, qty)
	assert.True(t, l.dirty[1])
}

func TestReserveWithoutInventoryRow(t *testing.T) {
	l := ledgerWith()
	v, ok := l.reserve(domain.Product{ID: 5, Name: "Ghost"}, 1)
	require.False(t, ok)
	assert.ErrorIs(t, v, ErrInsufficientStock)
	assert.Empty(t, l.dirty)
}

func TestReapplyFollowsGiveBackFormula(t *testing.T) {
	p := domain.Product{ID: 1, Name: "Keyboard"}
	cases := []struct {
		name     string
		stock    int
		oldQty   int
		newQty   int
		want     int
		wantKind error
	}{
		{name: "grow within available", stock: 6, oldQty: 4, newQty: 9, want: 1},
		{name: "shrink", stock: 1, oldQty: 9, newQty: 5, want: 5},
		{name: "take everything", stock: 5, oldQty: 5, newQty: 10, want: 0},
		{name: "unchanged", stock: 3, oldQty: 2, newQty: 2, want: 3},
		{name: "zero", stock: 5, oldQty: 5, newQty: 0, want: 5, wantKind: ErrInvalidQuantity},
		{name: "negative", stock: 5, oldQty: 5, newQty: -2, want: 5, wantKind: ErrInvalidQuantity},
		{name: "beyond available", stock: 5, oldQty: 5, newQty: 11, want: 5, wantKind: ErrInsufficientStock},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := ledgerWith(domain.Inventory{ProductID: 1, Quantity: tc.stock})
			v, ok := l.reapply(p, tc.oldQty, tc.newQty)
			if tc.wantKind != nil {
				require.False(t, ok)
				assert.ErrorIs(t, v, tc.wantKind)
			} else {
				require.True(t, ok)
			}
			qty, _ := l.quantity(1)
			assert.Equal(t, tc.want, qty)
		})
	}
}

func TestReapplyWithoutInventoryRowUsesCommittedQuantity(t *testing.T) {
	l := ledgerWith()
	_, ok := l.reapply(domain.Product{ID: 3, Name: "Hub"}, 4, 3)
	require.True(t, ok)
	qty, found := l.quantity(3)
	assert.True(t, found)
	assert.Equal(t, 1, qty)
}
