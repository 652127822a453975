package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"techsolutions/backend/internal/domain"
	"techsolutions/backend/internal/store"
)

// RegisterSale records a sale for the operator in ctx. Customer resolution,
// the sale header, its details and every stock decrement commit together;
// any violation rolls all of them back and every violation found is
// returned.
func (s *Service) RegisterSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResult, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.EmployeeID == 0 {
		return domain.SaleResult{}, fmt.Errorf("%w: operator identity required", ErrForbidden)
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.SaleResult{}, err
	}
	lines, err := ValidateLineItems(products, req.Quantities)
	if err != nil {
		s.metrics.SaleRejected(rejectionReason(err))
		return domain.SaleResult{}, err
	}
	discount, err := ParseDiscount(req.DiscountPercent)
	if err != nil {
		s.metrics.SaleRejected(rejectionReason(err))
		return domain.SaleResult{}, err
	}
	input, err := normalizeCustomer(req.Customer)
	if err != nil {
		s.metrics.SaleRejected(rejectionReason(err))
		return domain.SaleResult{}, err
	}

	var result domain.SaleResult
	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		resolved, err := resolveCustomer(ctx, tx, input)
		if err != nil {
			return err
		}

		ledger, err := lockStock(ctx, tx, productIDs(lines))
		if err != nil {
			return err
		}
		// Prices are frozen as committed when the sale is written, not as
		// first read for validation.
		current, err := tx.GetProducts(ctx, productIDs(lines))
		if err != nil {
			return err
		}
		for i := range lines {
			if p, ok := current[lines[i].Product.ID]; ok {
				lines[i].Product = p
			}
		}

		var violations Violations
		for _, line := range lines {
			if v, ok := ledger.reserve(line.Product, line.Quantity); !ok {
				violations = append(violations, v)
			}
		}
		if len(violations) > 0 {
			return violations
		}

		sale, err := tx.CreateSale(ctx, domain.Sale{
			CustomerID:      resolved.customer.ID,
			EmployeeID:      actor.EmployeeID,
			DiscountPercent: discount,
		})
		if err != nil {
			return err
		}

		details := make([]domain.SaleDetail, 0, len(lines))
		for _, line := range lines {
			detail, err := tx.CreateSaleDetail(ctx, domain.SaleDetail{
				SaleID:    sale.ID,
				ProductID: line.Product.ID,
				Quantity:  line.Quantity,
				UnitPrice: line.Product.Price,
			})
			if err != nil {
				return err
			}
			details = append(details, *detail)
		}
		if err := ledger.flush(ctx, tx); err != nil {
			return err
		}

		if err := s.auditCustomer(ctx, tx, resolved); err != nil {
			return err
		}
		if err := audit(ctx, tx, "sale_create", "sale", sale.ID, fmt.Sprintf("customer=%d,items=%d,units=%d,discount=%s",
			sale.CustomerID, len(details), totalUnits(lines), sale.DiscountPercent.StringFixed(2))); err != nil {
			return err
		}

		result = domain.SaleResult{
			Sale:            *sale,
			Details:         details,
			CustomerID:      resolved.customer.ID,
			CustomerCreated: resolved.created,
			EmailUpdated:    resolved.emailUpdated,
			Notices:         saleNotices(resolved),
		}
		return nil
	})
	if err != nil {
		s.metrics.SaleRejected(rejectionReason(err))
		s.logFailure(err, "sale registration rejected", logrus.Fields{"employee_id": actor.EmployeeID})
		return domain.SaleResult{}, err
	}

	s.purgeCatalog(ctx)
	s.metrics.SaleRegistered(totalUnits(lines))
	s.log.WithFields(logrus.Fields{
		"sale_id":     result.Sale.ID,
		"customer_id": result.CustomerID,
		"employee_id": actor.EmployeeID,
		"items":       len(result.Details),
	}).Info("sale registered")
	return result, nil
}

func (s *Service) auditCustomer(ctx context.Context, tx store.Tx, resolved customerResolution) error {
	switch {
	case resolved.created:
		return audit(ctx, tx, "customer_create", "customer", resolved.customer.ID, "id_number="+resolved.customer.IDNumber)
	case resolved.emailUpdated:
		return audit(ctx, tx, "customer_email_update", "customer", resolved.customer.ID, "email="+*resolved.customer.Email)
	}
	return nil
}

func saleNotices(resolved customerResolution) []string {
	notices := make([]string, 0, 3)
	if resolved.created {
		notices = append(notices, "new customer registered")
	}
	if resolved.emailUpdated {
		notices = append(notices, "customer email updated")
	}
	return append(notices, "sale registered")
}

// UpdateSale edits the customer, discount and line quantities of a
// committed sale. Only lines present in req.Quantities are touched, each
// reconciled against stock as if its old quantity had been returned first.
func (s *Service) UpdateSale(ctx context.Context, saleID int64, req domain.SaleEditRequest) (domain.SaleEditResult, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.SaleEditResult{}, err
	}

	var discount *decimal.Decimal
	if req.DiscountPercent != nil {
		d, err := ParseDiscount(*req.DiscountPercent)
		if err != nil {
			s.metrics.SaleChanged("update", rejectionReason(err))
			return domain.SaleEditResult{}, err
		}
		discount = &d
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.SaleEditResult{}, err
	}
	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var result domain.SaleEditResult
	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return fmt.Errorf("sale %d: %w", saleID, err)
		}
		if req.CustomerID != nil {
			if _, err := tx.GetCustomerByID(ctx, *req.CustomerID); err != nil {
				return fmt.Errorf("customer %d: %w", *req.CustomerID, err)
			}
			sale.CustomerID = *req.CustomerID
		}
		if discount != nil {
			sale.DiscountPercent = *discount
		}

		details, err := tx.ListSaleDetails(ctx, saleID)
		if err != nil {
			return err
		}
		touched := make([]int64, 0, len(details))
		for _, d := range details {
			if _, ok := submittedQuantity(req.Quantities, d.ProductID); ok {
				touched = append(touched, d.ProductID)
			}
		}

		ledger, err := lockStock(ctx, tx, touched)
		if err != nil {
			return err
		}

		var violations Violations
		changed := make([]int, 0, len(touched))
		for i, d := range details {
			raw, ok := submittedQuantity(req.Quantities, d.ProductID)
			if !ok {
				continue
			}
			product := byID[d.ProductID]
			if product.ID == 0 {
				product = domain.Product{ID: d.ProductID, Name: fmt.Sprintf("product %d", d.ProductID)}
			}

			qty, err := parseQuantity(raw)
			if err != nil {
				violations = append(violations, newViolation(ErrInvalidQuantity, "quantities", d.ProductID,
					"quantity for %s must be a whole number", product.Name))
				continue
			}
			if v, ok := ledger.reapply(product, d.Quantity, qty); !ok {
				violations = append(violations, v)
				continue
			}
			if qty != d.Quantity {
				details[i].Quantity = qty
				changed = append(changed, i)
			}
		}
		if len(violations) > 0 {
			return violations
		}

		for _, i := range changed {
			if err := tx.UpdateSaleDetailQuantity(ctx, details[i].ID, details[i].Quantity); err != nil {
				return err
			}
		}
		if err := ledger.flush(ctx, tx); err != nil {
			return err
		}
		if err := tx.UpdateSale(ctx, *sale); err != nil {
			return err
		}
		if err := audit(ctx, tx, "sale_update", "sale", sale.ID, fmt.Sprintf("customer=%d,discount=%s,lines_changed=%d",
			sale.CustomerID, sale.DiscountPercent.StringFixed(2), len(changed))); err != nil {
			return err
		}

		result = domain.SaleEditResult{Sale: *sale, Details: details, Notices: []string{"sale updated"}}
		return nil
	})
	if err != nil {
		s.metrics.SaleChanged("update", rejectionReason(err))
		s.logFailure(err, "sale update rejected", logrus.Fields{"sale_id": saleID})
		return domain.SaleEditResult{}, err
	}

	s.purgeCatalog(ctx)
	s.metrics.SaleChanged("update", "ok")
	s.log.WithField("sale_id", saleID).Info("sale updated")
	return result, nil
}

// submittedQuantity reports the raw quantity for productID. Blank values
// count as not submitted, like missing keys.
func submittedQuantity(quantities map[int64]domain.FormValue, productID int64) (domain.FormValue, bool) {
	raw, ok := quantities[productID]
	if !ok || strings.TrimSpace(string(raw)) == "" {
		return "", false
	}
	return raw, true
}

// DeleteSale removes a sale and its details. Stock is not returned to
// inventory.
func (s *Service) DeleteSale(ctx context.Context, saleID int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.DeleteSale(ctx, saleID); err != nil {
			return fmt.Errorf("sale %d: %w", saleID, err)
		}
		return audit(ctx, tx, "sale_delete", "sale", saleID, "restocked=false")
	})
	if err != nil {
		s.metrics.SaleChanged("delete", rejectionReason(err))
		s.logFailure(err, "sale delete rejected", logrus.Fields{"sale_id": saleID})
		return err
	}

	s.metrics.SaleChanged("delete", "ok")
	s.log.WithField("sale_id", saleID).Info("sale deleted")
	return nil
}

// logFailure logs business-rule rejections at info and anything else at
// error, since only the latter needs attention.
func (s *Service) logFailure(err error, msg string, fields logrus.Fields) {
	entry := s.log.WithFields(fields).WithError(err)
	var vs Violations
	if errors.As(err, &vs) || errors.Is(err, store.ErrNotFound) {
		entry.Info(msg)
		return
	}
	entry.Error(msg)
}
