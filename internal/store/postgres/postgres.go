package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"techsolutions/backend/internal/domain"
	"techsolutions/backend/internal/store"
)

type Store struct {
	db *sqlx.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WithinTx runs fn in a READ COMMITTED transaction. Inventory rows are
// locked with SELECT ... FOR UPDATE, which is what serializes concurrent
// sales of the same product. Any error or panic rolls back.
func (s *Store) WithinTx(ctx context.Context, fn store.TxFunc) (err error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
			return
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("commit transaction: %w", translate(err))
		}
	}()

	return fn(ctx, &pgTx{tx: tx})
}

const productColumns = `p.id, p.name, p.price, p.category_id, p.active, p.sku, p.created_at, p.updated_at`

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products := make([]domain.Product, 0, 64)
	err := s.db.SelectContext(ctx, &products, `SELECT `+productColumns+` FROM products p ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) ListSellableProducts(ctx context.Context, query string) ([]domain.SellableProduct, error) {
	products := make([]domain.SellableProduct, 0, 64)
	err := s.db.SelectContext(ctx, &products, `
		SELECT `+productColumns+`, i.quantity AS stock
		FROM products p
		JOIN inventory i ON i.product_id = p.id
		WHERE p.active = true
		  AND i.quantity > 0
		  AND ($1 = '' OR p.name ILIKE '%' || $1 || '%' OR p.sku ILIKE '%' || $1 || '%')
		ORDER BY p.name, p.id
	`, query)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetCustomerByIDNumber(ctx context.Context, idNumber string) (*domain.Customer, error) {
	return getCustomer(ctx, s.db, `WHERE id_number = $1`, idNumber)
}

const saleSummarySelect = `
	SELECT s.id, s.customer_id, s.employee_id, s.discount_percent, s.created_at, s.updated_at,
	       c.first_name || ' ' || c.last_name AS customer_name,
	       e.first_name || ' ' || e.last_name AS employee_name
	FROM sales s
	JOIN customers c ON c.id = s.customer_id
	JOIN employees e ON e.id = s.employee_id
`

func (s *Store) GetSale(ctx context.Context, saleID int64) (*domain.SaleSummary, error) {
	var summary domain.SaleSummary
	if err := s.db.GetContext(ctx, &summary, saleSummarySelect+` WHERE s.id = $1`, saleID); err != nil {
		return nil, translate(err)
	}

	summaries := []domain.SaleSummary{summary}
	if err := s.attachLines(ctx, summaries); err != nil {
		return nil, err
	}
	return &summaries[0], nil
}

func (s *Store) ListSales(ctx context.Context, limit int) ([]domain.SaleSummary, error) {
	summaries := make([]domain.SaleSummary, 0, limit)
	err := s.db.SelectContext(ctx, &summaries, saleSummarySelect+` ORDER BY s.created_at DESC, s.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	if err := s.attachLines(ctx, summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// attachLines loads the details of every summary in one query and fills in
// their totals.
func (s *Store) attachLines(ctx context.Context, summaries []domain.SaleSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	index := make(map[int64]int, len(summaries))
	ids := make([]int64, 0, len(summaries))
	for i := range summaries {
		index[summaries[i].ID] = i
		ids = append(ids, summaries[i].ID)
		summaries[i].Lines = []domain.SaleLine{}
	}

	query, args, err := sqlx.In(`
		SELECT d.id, d.sale_id, d.product_id, d.quantity, d.unit_price, p.name AS product_name
		FROM sale_details d
		JOIN products p ON p.id = d.product_id
		WHERE d.sale_id IN (?)
		ORDER BY d.sale_id, d.id
	`, ids)
	if err != nil {
		return err
	}

	lines := make([]domain.SaleLine, 0, len(ids)*2)
	if err := s.db.SelectContext(ctx, &lines, s.db.Rebind(query), args...); err != nil {
		return err
	}
	for _, line := range lines {
		i := index[line.SaleID]
		summaries[i].Lines = append(summaries[i].Lines, line)
	}
	for i := range summaries {
		summaries[i].Totals()
	}
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	logs := make([]domain.AuditLog, 0, limit)
	err := s.db.SelectContext(ctx, &logs, `
		SELECT id, actor_id_number, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) GetEmployeeByIDNumber(ctx context.Context, idNumber string) (*domain.Employee, error) {
	var employee domain.Employee
	err := s.db.GetContext(ctx, &employee, `
		SELECT id, first_name, last_name, id_number, phone, role_id, password_hash, active, created_at
		FROM employees
		WHERE id_number = $1
	`, idNumber)
	if err != nil {
		return nil, translate(err)
	}
	return &employee, nil
}

func (s *Store) CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error) {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO employees (first_name, last_name, id_number, phone, role_id, password_hash, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, employee.FirstName, employee.LastName, employee.IDNumber, employee.Phone, employee.RoleID, employee.PasswordHash, employee.Active,
	).Scan(&employee.ID, &employee.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &employee, nil
}

// translate maps driver errors onto store sentinels. Constraint names are
// kept in the message for conflicts.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
	case pgerrcode.CheckViolation:
		if pgErr.ConstraintName == "inventory_quantity_non_negative" {
			return store.ErrInsufficientStock
		}
		return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("%w: %s", store.ErrNotFound, pgErr.ConstraintName)
	}
	return err
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
