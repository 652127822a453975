package memory

import (
	"context"
	"strings"
	"time"

	"techsolutions/backend/internal/domain"
	"techsolutions/backend/internal/store"
	"techsolutions/backend/internal/xid"
)

// memTx writes into a private clone of the store state. The writer lock is
// held for its whole life, so it needs no locking of its own.
type memTx struct {
	st *state
}

func (t *memTx) GetCustomerByID(_ context.Context, customerID int64) (*domain.Customer, error) {
	c, ok := t.st.customers[customerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (t *memTx) GetCustomerByIDNumber(_ context.Context, idNumber string) (*domain.Customer, error) {
	return customerByIDNumber(t.st, idNumber)
}

func customerByIDNumber(st *state, idNumber string) (*domain.Customer, error) {
	for _, c := range st.customers {
		if c.IDNumber == idNumber {
			found := c
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) GetCustomerByEmail(_ context.Context, email string) (*domain.Customer, error) {
	for _, c := range t.st.customers {
		if c.Email != nil && strings.EqualFold(*c.Email, email) {
			found := c
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if _, err := t.GetCustomerByIDNumber(ctx, customer.IDNumber); err == nil {
		return nil, store.ErrConflict
	}
	if customer.Email != nil {
		if _, err := t.GetCustomerByEmail(ctx, *customer.Email); err == nil {
			return nil, store.ErrConflict
		}
	}
	customer.ID = t.st.next("customers")
	t.st.customers[customer.ID] = customer
	return &customer, nil
}

func (t *memTx) UpdateCustomerEmail(ctx context.Context, customerID int64, email string) error {
	c, ok := t.st.customers[customerID]
	if !ok {
		return store.ErrNotFound
	}
	if other, err := t.GetCustomerByEmail(ctx, email); err == nil && other.ID != customerID {
		return store.ErrConflict
	}
	c.Email = &email
	t.st.customers[customerID] = c
	return nil
}

func (t *memTx) GetProducts(_ context.Context, productIDs []int64) (map[int64]domain.Product, error) {
	result := make(map[int64]domain.Product, len(productIDs))
	for _, id := range productIDs {
		if p, ok := t.st.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (t *memTx) LockInventory(_ context.Context, productIDs []int64) (map[int64]domain.Inventory, error) {
	result := make(map[int64]domain.Inventory, len(productIDs))
	for _, id := range productIDs {
		if inv, ok := t.st.inventory[id]; ok {
			result[id] = inv
		}
	}
	return result, nil
}

func (t *memTx) SetInventoryQuantity(_ context.Context, productID int64, quantity int) error {
	if quantity < 0 {
		return store.ErrInsufficientStock
	}
	setInventory(t.st, productID, quantity)
	return nil
}

func (t *memTx) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if _, ok := t.st.customers[sale.CustomerID]; !ok {
		return nil, store.ErrNotFound
	}
	now := time.Now().UTC()
	sale.ID = t.st.next("sales")
	sale.CreatedAt = now
	sale.UpdatedAt = now
	t.st.sales[sale.ID] = sale
	return &sale, nil
}

func (t *memTx) GetSaleForUpdate(_ context.Context, saleID int64) (*domain.Sale, error) {
	sale, ok := t.st.sales[saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sale, nil
}

func (t *memTx) UpdateSale(_ context.Context, sale domain.Sale) error {
	existing, ok := t.st.sales[sale.ID]
	if !ok {
		return store.ErrNotFound
	}
	if _, ok := t.st.customers[sale.CustomerID]; !ok {
		return store.ErrNotFound
	}
	existing.CustomerID = sale.CustomerID
	existing.DiscountPercent = sale.DiscountPercent
	existing.UpdatedAt = time.Now().UTC()
	t.st.sales[sale.ID] = existing
	return nil
}

func (t *memTx) DeleteSale(_ context.Context, saleID int64) error {
	if _, ok := t.st.sales[saleID]; !ok {
		return store.ErrNotFound
	}
	delete(t.st.sales, saleID)
	for id, d := range t.st.details {
		if d.SaleID == saleID {
			delete(t.st.details, id)
		}
	}
	return nil
}

func (t *memTx) CreateSaleDetail(_ context.Context, detail domain.SaleDetail) (*domain.SaleDetail, error) {
	if _, ok := t.st.sales[detail.SaleID]; !ok {
		return nil, store.ErrNotFound
	}
	for _, d := range t.st.details {
		if d.SaleID == detail.SaleID && d.ProductID == detail.ProductID {
			return nil, store.ErrConflict
		}
	}
	detail.ID = t.st.next("sale_details")
	t.st.details[detail.ID] = detail
	return &detail, nil
}

func (t *memTx) ListSaleDetails(_ context.Context, saleID int64) ([]domain.SaleDetail, error) {
	return detailsOf(t.st, saleID), nil
}

func (t *memTx) UpdateSaleDetailQuantity(_ context.Context, detailID int64, quantity int) error {
	d, ok := t.st.details[detailID]
	if !ok {
		return store.ErrNotFound
	}
	d.Quantity = quantity
	t.st.details[detailID] = d
	return nil
}

func (t *memTx) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	t.st.auditLogs = append(t.st.auditLogs, entry)
	return nil
}
