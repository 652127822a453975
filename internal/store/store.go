package store

import (
	"context"
	"errors"

	"techsolutions/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// TxFunc runs inside a single store transaction. Returning a non-nil error
// rolls back every write made through tx.
type TxFunc func(ctx context.Context, tx Tx) error

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListSellableProducts(ctx context.Context, query string) ([]domain.SellableProduct, error)
	GetCustomerByIDNumber(ctx context.Context, idNumber string) (*domain.Customer, error)
	GetSale(ctx context.Context, saleID int64) (*domain.SaleSummary, error)
	ListSales(ctx context.Context, limit int) ([]domain.SaleSummary, error)
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
	GetEmployeeByIDNumber(ctx context.Context, idNumber string) (*domain.Employee, error)
	CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error)
	WithinTx(ctx context.Context, fn TxFunc) error
}

// Tx is the write surface used by sale registration and sale editing.
type Tx interface {
	GetCustomerByID(ctx context.Context, customerID int64) (*domain.Customer, error)
	GetCustomerByIDNumber(ctx context.Context, idNumber string) (*domain.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomerEmail(ctx context.Context, customerID int64, email string) error

	// GetProducts returns the committed rows of productIDs, keyed by id. Ids
	// without a row are absent from the map.
	GetProducts(ctx context.Context, productIDs []int64) (map[int64]domain.Product, error)
	// LockInventory returns the inventory rows of the given products keyed by
	// product id, locked until the transaction ends. Products without an
	// inventory row are absent from the map.
	LockInventory(ctx context.Context, productIDs []int64) (map[int64]domain.Inventory, error)
	SetInventoryQuantity(ctx context.Context, productID int64, quantity int) error

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleForUpdate(ctx context.Context, saleID int64) (*domain.Sale, error)
	UpdateSale(ctx context.Context, sale domain.Sale) error
	DeleteSale(ctx context.Context, saleID int64) error
	CreateSaleDetail(ctx context.Context, detail domain.SaleDetail) (*domain.SaleDetail, error)
	ListSaleDetails(ctx context.Context, saleID int64) ([]domain.SaleDetail, error)
	UpdateSaleDetailQuantity(ctx context.Context, detailID int64, quantity int) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
}
