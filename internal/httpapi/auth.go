package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"techsolutions/backend/internal/domain"
	"techsolutions/backend/internal/store"
)

var errInvalidCredentials = errors.New("invalid credentials")

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	employees EmployeeStore
}

type EmployeeStore interface {
	GetEmployeeByIDNumber(ctx context.Context, idNumber string) (*domain.Employee, error)
	CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error)
}

type employeeClaims struct {
	jwtlib.RegisteredClaims
	EmployeeID int64  `json:"eid"`
	Name       string `json:"name"`
	Role       string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, employees EmployeeStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		employees: employees,
	}
}

// Login authenticates an employee by identity number and password.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	idNumber := strings.TrimSpace(req.Username)
	if idNumber == "" {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	employee, err := a.employees.GetEmployeeByIDNumber(ctx, idNumber)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if err != nil {
		return domain.LoginResponse{}, err
	}
	if !verifyPassword(employee.PasswordHash, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if !employee.Active {
		return domain.LoginResponse{}, errors.New("account is inactive")
	}

	actor := domain.Actor{
		EmployeeID: employee.ID,
		IDNumber:   employee.IDNumber,
		Name:       employee.FullName(),
		Role:       domain.RoleName(employee.RoleID),
	}
	if actor.Role == "" {
		return domain.LoginResponse{}, fmt.Errorf("employee %s has unknown role %d", employee.IDNumber, employee.RoleID)
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(actor, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Employee:    actor,
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &employeeClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.EmployeeID == 0 {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{EmployeeID: claims.EmployeeID, IDNumber: sub, Name: claims.Name, Role: claims.Role}, nil
}

const tokenIssuer = "techsolutions"

func (a *AuthManager) sign(actor domain.Actor, expiresAt time.Time) (string, error) {
	claims := employeeClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.IDNumber,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		EmployeeID: actor.EmployeeID,
		Name:       actor.Name,
		Role:       actor.Role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// EnsureAdmin creates the bootstrap admin employee unless one with idNumber
// already exists. It reports whether an employee was created.
func (a *AuthManager) EnsureAdmin(ctx context.Context, idNumber string, password string) (bool, error) {
	_, err := a.employees.GetEmployeeByIDNumber(ctx, idNumber)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if len(password) < 8 {
		return false, errors.New("SEED_ADMIN_PASSWORD must be at least 8 characters to create the admin employee")
	}

	hash, err := hashPassword(password)
	if err != nil {
		return false, err
	}
	_, err = a.employees.CreateEmployee(ctx, domain.Employee{
		FirstName:    "System",
		LastName:     "Admin",
		IDNumber:     idNumber,
		Phone:        "admin-" + idNumber,
		RoleID:       domain.RoleIDAdmin,
		PasswordHash: hash,
		Active:       true,
	})
	if errors.Is(err, store.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
