package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"techsolutions/backend/internal/domain"
	"techsolutions/backend/internal/store"
)

type pgTx struct {
	tx *sqlx.Tx
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

func getCustomer(ctx context.Context, q queryer, where string, args ...any) (*domain.Customer, error) {
	var customer domain.Customer
	if err := q.GetContext(ctx, &customer, `SELECT id, first_name, last_name, id_number, email FROM customers `+where, args...); err != nil {
		return nil, translate(err)
	}
	return &customer, nil
}

func (t *pgTx) GetCustomerByID(ctx context.Context, customerID int64) (*domain.Customer, error) {
	return getCustomer(ctx, t.tx, `WHERE id = $1`, customerID)
}

func (t *pgTx) GetCustomerByIDNumber(ctx context.Context, idNumber string) (*domain.Customer, error) {
	return getCustomer(ctx, t.tx, `WHERE id_number = $1`, idNumber)
}

func (t *pgTx) GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return getCustomer(ctx, t.tx, `WHERE lower(email) = lower($1)`, email)
}

func (t *pgTx) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	var email string
	if customer.Email != nil {
		email = *customer.Email
	}

	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO customers (first_name, last_name, id_number, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, customer.FirstName, customer.LastName, customer.IDNumber, nullIfEmpty(email)).Scan(&customer.ID)
	if err != nil {
		return nil, translate(err)
	}
	return &customer, nil
}

func (t *pgTx) UpdateCustomerEmail(ctx context.Context, customerID int64, email string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE customers SET email = $2 WHERE id = $1`, customerID, email)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}

// GetProducts takes a share lock so a price cannot change under a sale
// that is freezing it.
func (t *pgTx) GetProducts(ctx context.Context, productIDs []int64) (map[int64]domain.Product, error) {
	result := make(map[int64]domain.Product, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM products p WHERE p.id IN (?) ORDER BY p.id FOR SHARE`, productIDs)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.Product, 0, len(productIDs))
	if err := t.tx.SelectContext(ctx, &rows, t.tx.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ID] = row
	}
	return result, nil
}

func (t *pgTx) LockInventory(ctx context.Context, productIDs []int64) (map[int64]domain.Inventory, error) {
	result := make(map[int64]domain.Inventory, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, product_id, quantity, updated_at
		FROM inventory
		WHERE product_id IN (?)
		ORDER BY product_id
		FOR UPDATE
	`, productIDs)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.Inventory, 0, len(productIDs))
	if err := t.tx.SelectContext(ctx, &rows, t.tx.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ProductID] = row
	}
	return result, nil
}

func (t *pgTx) SetInventoryQuantity(ctx context.Context, productID int64, quantity int) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO inventory (product_id, quantity, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
	`, productID, quantity)
	return translate(err)
}

func (t *pgTx) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO sales (customer_id, employee_id, discount_percent)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, sale.CustomerID, sale.EmployeeID, sale.DiscountPercent).Scan(&sale.ID, &sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &sale, nil
}

func (t *pgTx) GetSaleForUpdate(ctx context.Context, saleID int64) (*domain.Sale, error) {
	var sale domain.Sale
	err := t.tx.GetContext(ctx, &sale, `
		SELECT id, customer_id, employee_id, discount_percent, created_at, updated_at
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID)
	if err != nil {
		return nil, translate(err)
	}
	return &sale, nil
}

func (t *pgTx) UpdateSale(ctx context.Context, sale domain.Sale) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE sales
		SET customer_id = $2, discount_percent = $3, updated_at = now()
		WHERE id = $1
	`, sale.ID, sale.CustomerID, sale.DiscountPercent)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}

func (t *pgTx) DeleteSale(ctx context.Context, saleID int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}

func (t *pgTx) CreateSaleDetail(ctx context.Context, detail domain.SaleDetail) (*domain.SaleDetail, error) {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO sale_details (sale_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, detail.SaleID, detail.ProductID, detail.Quantity, detail.UnitPrice).Scan(&detail.ID)
	if err != nil {
		return nil, translate(err)
	}
	return &detail, nil
}

func (t *pgTx) ListSaleDetails(ctx context.Context, saleID int64) ([]domain.SaleDetail, error) {
	details := make([]domain.SaleDetail, 0, 8)
	err := t.tx.SelectContext(ctx, &details, `
		SELECT id, sale_id, product_id, quantity, unit_price
		FROM sale_details
		WHERE sale_id = $1
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (t *pgTx) UpdateSaleDetailQuantity(ctx context.Context, detailID int64, quantity int) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE sale_details SET quantity = $2 WHERE id = $1`, detailID, quantity)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}

func (t *pgTx) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id_number, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES (:id, :actor_id_number, :actor_role, :action, :entity_type, :entity_id, :detail, :created_at)
	`, entry)
	return translate(err)
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func requireRow(res rowsAffecter) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
