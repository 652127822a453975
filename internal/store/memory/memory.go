package memory

import (
	"cmp"
	"context"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"techsolutions/backend/internal/domain"
	"techsolutions/backend/internal/store"
)

// Store keeps every table in one state value. Transactions work on a clone of
// that value and swap it in on success, so a failed transaction leaves no
// trace. writeMu serializes transactions; mu guards the state pointer.
type Store struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	data    *state
}

type state struct {
	seq        map[string]int64
	employees  map[int64]domain.Employee
	customers  map[int64]domain.Customer
	categories map[int64]domain.Category
	products   map[int64]domain.Product
	inventory  map[int64]domain.Inventory
	sales      map[int64]domain.Sale
	details    map[int64]domain.SaleDetail
	auditLogs  []domain.AuditLog
}

func newState() *state {
	return &state{
		seq:        make(map[string]int64),
		employees:  make(map[int64]domain.Employee),
		customers:  make(map[int64]domain.Customer),
		categories: make(map[int64]domain.Category),
		products:   make(map[int64]domain.Product),
		inventory:  make(map[int64]domain.Inventory),
		sales:      make(map[int64]domain.Sale),
		details:    make(map[int64]domain.SaleDetail),
		auditLogs:  make([]domain.AuditLog, 0, 64),
	}
}

func (st *state) clone() *state {
	return &state{
		seq:        maps.Clone(st.seq),
		employees:  maps.Clone(st.employees),
		customers:  maps.Clone(st.customers),
		categories: maps.Clone(st.categories),
		products:   maps.Clone(st.products),
		inventory:  maps.Clone(st.inventory),
		sales:      maps.Clone(st.sales),
		details:    maps.Clone(st.details),
		auditLogs:  slices.Clone(st.auditLogs),
	}
}

func (st *state) next(table string) int64 {
	st.seq[table]++
	return st.seq[table]
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newState()}
}

// NewSeeded returns a store with a demo catalog plus one admin and one
// regular employee. Passwords come from SEED_ADMIN_PASSWORD and
// SEED_USER_PASSWORD, with dev defaults when unset.
func NewSeeded() *Store {
	s := New()
	log := logrus.WithField("component", "memory-store")

	adminPwd := envOr("SEED_ADMIN_PASSWORD", "Admin123")
	userPwd := envOr("SEED_USER_PASSWORD", "User1234")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_USER_PASSWORD") == "" {
		log.Warn("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_USER_PASSWORD to override")
	}

	for _, e := range []struct {
		first, last, idNumber, phone, password string
		roleID                                 int64
	}{
		{"System", "Admin", "123456789", "0000000000", adminPwd, domain.RoleIDAdmin},
		{"Sales", "Clerk", "987654321", "0000000001", userPwd, domain.RoleIDUser},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(e.password), bcrypt.DefaultCost)
		if err != nil {
			log.WithError(err).Fatalf("failed to hash seed password for %s", e.idNumber)
		}
		s.AddEmployee(domain.Employee{
			FirstName:    e.first,
			LastName:     e.last,
			IDNumber:     e.idNumber,
			Phone:        e.phone,
			RoleID:       e.roleID,
			PasswordHash: string(hash),
			Active:       true,
		})
	}

	peripherals := s.AddCategory("Peripherals")
	displays := s.AddCategory("Displays")
	storage := s.AddCategory("Storage")

	for _, p := range []struct {
		name, sku, price string
		category         int64
		active           bool
		stock            int
	}{
		{"Mechanical Keyboard", "PER-KB-001", "350.00", peripherals.ID, true, 25},
		{"Wireless Mouse", "PER-MS-002", "120.50", peripherals.ID, true, 40},
		{"USB-C Hub", "PER-HB-003", "89.90", peripherals.ID, true, 0},
		{"27in Monitor", "DSP-MN-001", "2450.00", displays.ID, true, 8},
		{"Portable Projector", "DSP-PJ-002", "3100.00", displays.ID, false, 3},
		{"SSD 1TB", "STO-SS-001", "560.00", storage.ID, true, 15},
		{"External HDD 2TB", "STO-HD-002", "410.75", storage.ID, true, 12},
	} {
		category := p.category
		s.AddProduct(domain.Product{
			Name:       p.name,
			SKU:        p.sku,
			Price:      decimal.RequireFromString(p.price),
			CategoryID: &category,
			Active:     p.active,
		}, p.stock)
	}

	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// mutate applies fn directly under the writer lock. It backs the seeding
// helpers, which never fail.
func (s *Store) mutate(fn func(st *state)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.snapshot().clone()
	fn(next)

	s.mu.Lock()
	s.data = next
	s.mu.Unlock()
}

func (s *Store) AddCategory(name string) domain.Category {
	var created domain.Category
	s.mutate(func(st *state) {
		created = domain.Category{ID: st.next("categories"), Name: name}
		st.categories[created.ID] = created
	})
	return created
}

// AddProduct inserts a product and, when stock is non-negative, its
// inventory row. Pass a negative stock to leave the product without one.
func (s *Store) AddProduct(product domain.Product, stock int) domain.Product {
	s.mutate(func(st *state) {
		now := time.Now().UTC()
		product.ID = st.next("products")
		product.CreatedAt = now
		product.UpdatedAt = now
		st.products[product.ID] = product
		if stock >= 0 {
			st.inventory[product.ID] = domain.Inventory{
				ID:        st.next("inventory"),
				ProductID: product.ID,
				Quantity:  stock,
				UpdatedAt: now,
			}
		}
	})
	return product
}

func (s *Store) AddEmployee(employee domain.Employee) domain.Employee {
	s.mutate(func(st *state) {
		employee.ID = st.next("employees")
		if employee.CreatedAt.IsZero() {
			employee.CreatedAt = time.Now().UTC()
		}
		st.employees[employee.ID] = employee
	})
	return employee
}

func (s *Store) SetProductPrice(productID int64, price decimal.Decimal) {
	s.mutate(func(st *state) {
		if p, ok := st.products[productID]; ok {
			p.Price = price
			p.UpdatedAt = time.Now().UTC()
			st.products[productID] = p
		}
	})
}

func (s *Store) SetStock(productID int64, quantity int) {
	s.mutate(func(st *state) {
		setInventory(st, productID, quantity)
	})
}

// Stock reports the inventory quantity of a product and whether it has an
// inventory row at all.
func (s *Store) Stock(productID int64) (int, bool) {
	inv, ok := s.snapshot().inventory[productID]
	return inv.Quantity, ok
}

func (s *Store) ProductBySKU(sku string) (domain.Product, bool) {
	for _, p := range s.snapshot().products {
		if p.SKU == sku {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (s *Store) CustomerCount() int {
	return len(s.snapshot().customers)
}

func setInventory(st *state, productID int64, quantity int) {
	inv, ok := st.inventory[productID]
	if !ok {
		inv = domain.Inventory{ID: st.next("inventory"), ProductID: productID}
	}
	inv.Quantity = quantity
	inv.UpdatedAt = time.Now().UTC()
	st.inventory[productID] = inv
}

func (s *Store) WithinTx(ctx context.Context, fn store.TxFunc) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	working := s.snapshot().clone()
	if err := fn(ctx, &memTx{st: working}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = working
	s.mu.Unlock()
	return nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	st := s.snapshot()
	products := slices.Collect(maps.Values(st.products))
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return products, nil
}

func (s *Store) ListSellableProducts(_ context.Context, query string) ([]domain.SellableProduct, error) {
	st := s.snapshot()
	query = strings.ToLower(strings.TrimSpace(query))

	result := make([]domain.SellableProduct, 0, len(st.products))
	for _, p := range st.products {
		if !p.Active {
			continue
		}
		inv, ok := st.inventory[p.ID]
		if !ok || inv.Quantity <= 0 {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) && !strings.Contains(strings.ToLower(p.SKU), query) {
			continue
		}
		result = append(result, domain.SellableProduct{Product: p, Stock: inv.Quantity})
	}

	slices.SortFunc(result, func(a, b domain.SellableProduct) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return result, nil
}

func (s *Store) GetCustomerByIDNumber(_ context.Context, idNumber string) (*domain.Customer, error) {
	return customerByIDNumber(s.snapshot(), idNumber)
}

func (s *Store) GetSale(_ context.Context, saleID int64) (*domain.SaleSummary, error) {
	st := s.snapshot()
	sale, ok := st.sales[saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	summary := summarize(st, sale)
	return &summary, nil
}

func (s *Store) ListSales(_ context.Context, limit int) ([]domain.SaleSummary, error) {
	st := s.snapshot()
	sales := slices.Collect(maps.Values(st.sales))
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	if limit > 0 && len(sales) > limit {
		sales = sales[:limit]
	}

	result := make([]domain.SaleSummary, 0, len(sales))
	for _, sale := range sales {
		result = append(result, summarize(st, sale))
	}
	return result, nil
}

func summarize(st *state, sale domain.Sale) domain.SaleSummary {
	summary := domain.SaleSummary{Sale: sale, Lines: []domain.SaleLine{}}
	if c, ok := st.customers[sale.CustomerID]; ok {
		summary.CustomerName = c.FullName()
	}
	if e, ok := st.employees[sale.EmployeeID]; ok {
		summary.EmployeeName = e.FullName()
	}
	for _, d := range detailsOf(st, sale.ID) {
		summary.Lines = append(summary.Lines, domain.SaleLine{
			SaleDetail:  d,
			ProductName: st.products[d.ProductID].Name,
		})
	}
	summary.Totals()
	return summary
}

func detailsOf(st *state, saleID int64) []domain.SaleDetail {
	result := make([]domain.SaleDetail, 0, 4)
	for _, d := range st.details {
		if d.SaleID == saleID {
			result = append(result, d)
		}
	}
	slices.SortFunc(result, func(a, b domain.SaleDetail) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	st := s.snapshot()
	result := slices.Clone(st.auditLogs)
	slices.Reverse(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) GetEmployeeByIDNumber(_ context.Context, idNumber string) (*domain.Employee, error) {
	for _, e := range s.snapshot().employees {
		if e.IDNumber == idNumber {
			found := e
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error) {
	if _, err := s.GetEmployeeByIDNumber(ctx, employee.IDNumber); err == nil {
		return nil, store.ErrConflict
	}
	created := s.AddEmployee(employee)
	return &created, nil
}
