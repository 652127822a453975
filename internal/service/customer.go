package service

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"

	"techsolutions/backend/internal/domain"
	"techsolutions/backend/internal/store"
)

var idNumberPattern = regexp.MustCompile(`^[0-9]{9}$`)

type customerResolution struct {
	customer     domain.Customer
	created      bool
	emailUpdated bool
}

// normalizeCustomer trims every field, lowercases the email and reports all
// field problems at once.
func normalizeCustomer(in domain.CustomerInput) (domain.CustomerInput, error) {
	out := domain.CustomerInput{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		IDNumber:  strings.TrimSpace(in.IDNumber),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
	}

	var vs Violations
	if !idNumberPattern.MatchString(out.IDNumber) {
		vs = append(vs, newViolation(ErrValidation, "customer.id_number", 0, "identity number must be exactly 9 digits"))
	}
	if out.FirstName == "" {
		vs = append(vs, newViolation(ErrValidation, "customer.first_name", 0, "first name is required"))
	}
	if out.LastName == "" {
		vs = append(vs, newViolation(ErrValidation, "customer.last_name", 0, "last name is required"))
	}
	if out.Email != "" {
		if addr, err := mail.ParseAddress(out.Email); err != nil || addr.Address != out.Email {
			vs = append(vs, newViolation(ErrValidation, "customer.email", 0, "email %q is not a valid address", out.Email))
		}
	}
	if len(vs) > 0 {
		return out, vs
	}
	return out, nil
}

// resolveCustomer finds the customer owning the identity number or creates
// one. in must already be normalized.
func resolveCustomer(ctx context.Context, tx store.Tx, in domain.CustomerInput) (customerResolution, error) {
	existing, err := tx.GetCustomerByIDNumber(ctx, in.IDNumber)
	switch {
	case err == nil:
		return refreshCustomer(ctx, tx, *existing, in)
	case !errors.Is(err, store.ErrNotFound):
		return customerResolution{}, err
	}

	customer := domain.Customer{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		IDNumber:  in.IDNumber,
	}
	if in.Email != "" {
		if err := ensureEmailFree(ctx, tx, in.Email, 0); err != nil {
			return customerResolution{}, err
		}
		email := in.Email
		customer.Email = &email
	}

	created, err := tx.CreateCustomer(ctx, customer)
	if err != nil {
		return customerResolution{}, err
	}
	return customerResolution{customer: *created, created: true}, nil
}

func refreshCustomer(ctx context.Context, tx store.Tx, existing domain.Customer, in domain.CustomerInput) (customerResolution, error) {
	if !strings.EqualFold(existing.FirstName, in.FirstName) || !strings.EqualFold(existing.LastName, in.LastName) {
		return customerResolution{}, Violations{newViolation(ErrIdentityMismatch, "customer.id_number", 0,
			"identity number %s is registered to %s, not %s %s", in.IDNumber, existing.FullName(), in.FirstName, in.LastName)}
	}

	result := customerResolution{customer: existing}
	if in.Email == "" || (existing.Email != nil && strings.EqualFold(*existing.Email, in.Email)) {
		return result, nil
	}

	if err := ensureEmailFree(ctx, tx, in.Email, existing.ID); err != nil {
		return customerResolution{}, err
	}
	if err := tx.UpdateCustomerEmail(ctx, existing.ID, in.Email); err != nil {
		return customerResolution{}, err
	}
	email := in.Email
	result.customer.Email = &email
	result.emailUpdated = true
	return result, nil
}

// ensureEmailFree fails with ErrDuplicateEmail when email belongs to a
// customer other than ownerID.
func ensureEmailFree(ctx context.Context, tx store.Tx, email string, ownerID int64) error {
	other, err := tx.GetCustomerByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if other.ID == ownerID {
		return nil
	}
	return Violations{newViolation(ErrDuplicateEmail, "customer.email", 0, "email %s is already registered to another customer", email)}
}
