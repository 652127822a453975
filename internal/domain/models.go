package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleIDAdmin int64 = 1
	RoleIDUser  int64 = 2

	RoleAdmin = "admin"
	RoleUser  = "user"
)

// RoleName maps a stored role id onto the name carried in tokens and audit rows.
func RoleName(roleID int64) string {
	switch roleID {
	case RoleIDAdmin:
		return RoleAdmin
	case RoleIDUser:
		return RoleUser
	default:
		return ""
	}
}

type Employee struct {
	ID           int64     `json:"id" db:"id"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	IDNumber     string    `json:"id_number" db:"id_number"`
	Phone        string    `json:"phone" db:"phone"`
	RoleID       int64     `json:"role_id" db:"role_id"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

func (e Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

type Customer struct {
	ID        int64   `json:"id" db:"id"`
	FirstName string  `json:"first_name" db:"first_name"`
	LastName  string  `json:"last_name" db:"last_name"`
	IDNumber  string  `json:"id_number" db:"id_number"`
	Email     *string `json:"email,omitempty" db:"email"`
}

func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Product struct {
	ID         int64           `json:"id" db:"id"`
	Name       string          `json:"name" db:"name"`
	Price      decimal.Decimal `json:"price" db:"price"`
	CategoryID *int64          `json:"category_id,omitempty" db:"category_id"`
	Active     bool            `json:"active" db:"active"`
	SKU        string          `json:"sku" db:"sku"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

type Inventory struct {
	ID        int64     `json:"id" db:"id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Sale struct {
	ID              int64           `json:"id" db:"id"`
	CustomerID      int64           `json:"customer_id" db:"customer_id"`
	EmployeeID      int64           `json:"employee_id" db:"employee_id"`
	DiscountPercent decimal.Decimal `json:"discount_percent" db:"discount_percent"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

type SaleDetail struct {
	ID        int64           `json:"id" db:"id"`
	SaleID    int64           `json:"sale_id" db:"sale_id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
}

// LineItem is a validated (product, quantity) pair awaiting commit.
type LineItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

type SellableProduct struct {
	Product
	Stock int `json:"stock" db:"stock"`
}

// FormValue is a raw form field. It accepts JSON strings and JSON numbers so
// parsing (and rejection) happens in one place.
type FormValue string

func (v *FormValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FormValue(s)
		return nil
	}
	*v = FormValue(data)
	return nil
}

type CustomerInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IDNumber  string `json:"id_number"`
	Email     string `json:"email"`
}

type SaleRequest struct {
	Customer        CustomerInput       `json:"customer"`
	DiscountPercent FormValue           `json:"discount_percent"`
	Quantities      map[int64]FormValue `json:"quantities"`
}

type SaleEditRequest struct {
	CustomerID      *int64              `json:"customer_id,omitempty"`
	DiscountPercent *FormValue          `json:"discount_percent,omitempty"`
	Quantities      map[int64]FormValue `json:"quantities"`
}

type SaleResult struct {
	Sale            Sale         `json:"sale"`
	Details         []SaleDetail `json:"details"`
	CustomerID      int64        `json:"customer_id"`
	CustomerCreated bool         `json:"customer_created"`
	EmailUpdated    bool         `json:"email_updated"`
	Notices         []string     `json:"notices"`
}

type SaleEditResult struct {
	Sale    Sale         `json:"sale"`
	Details []SaleDetail `json:"details"`
	Notices []string     `json:"notices"`
}

type SaleLine struct {
	SaleDetail
	ProductName string          `json:"product_name" db:"product_name"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type SaleSummary struct {
	Sale
	CustomerName   string          `json:"customer_name" db:"customer_name"`
	EmployeeName   string          `json:"employee_name" db:"employee_name"`
	Lines          []SaleLine      `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
}

// Totals fills line totals plus subtotal, discount and total, each rounded to
// two decimal places.
func (s *SaleSummary) Totals() {
	subtotal := decimal.Zero
	for i := range s.Lines {
		line := s.Lines[i].UnitPrice.Mul(decimal.NewFromInt(int64(s.Lines[i].Quantity)))
		s.Lines[i].LineTotal = line.Round(2)
		subtotal = subtotal.Add(line)
	}
	discount := subtotal.Mul(s.DiscountPercent).Div(decimal.NewFromInt(100))
	s.Subtotal = subtotal.Round(2)
	s.DiscountAmount = discount.Round(2)
	s.Total = subtotal.Sub(discount).Round(2)
}

type Actor struct {
	EmployeeID int64  `json:"employee_id"`
	IDNumber   string `json:"id_number"`
	Name       string `json:"name"`
	Role       string `json:"role"`
}

type AuditLog struct {
	ID            string    `json:"id" db:"id"`
	ActorIDNumber string    `json:"actor_id_number" db:"actor_id_number"`
	ActorRole     string    `json:"actor_role" db:"actor_role"`
	Action        string    `json:"action" db:"action"`
	EntityType    string    `json:"entity_type" db:"entity_type"`
	EntityID      string    `json:"entity_id" db:"entity_id"`
	Detail        string    `json:"detail" db:"detail"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Employee    Actor     `json:"employee"`
}
