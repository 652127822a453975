package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"techsolutions/backend/internal/cache"
	"techsolutions/backend/internal/domain"
	"techsolutions/backend/internal/metrics"
	"techsolutions/backend/internal/store"
	"techsolutions/backend/internal/xid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo       store.Repository
	catalog    cache.CatalogCache
	catalogTTL time.Duration
	// catalogGen counts purges; a listing read before a purge must not
	// outlive it in the cache.
	catalogGen atomic.Uint64
	metrics    *metrics.Recorder
	log        *logrus.Entry
}

// New wires the sale workflow. catalog and logger may be nil; recorder may be
// nil to disable metrics.
func New(repo store.Repository, catalog cache.CatalogCache, catalogTTL time.Duration, recorder *metrics.Recorder, logger *logrus.Logger) *Service {
	if catalog == nil {
		catalog = cache.NoopCatalogCache{}
	}
	if catalogTTL <= 0 {
		catalogTTL = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Service{
		repo:       repo,
		catalog:    catalog,
		catalogTTL: catalogTTL,
		metrics:    recorder,
		log:        logger.WithField("component", "service"),
	}
}

// ListSellableProducts returns active products with stock on hand whose name
// or SKU contains query. Results are cached per query until stock changes.
func (s *Service) ListSellableProducts(ctx context.Context, query string) ([]domain.SellableProduct, error) {
	query = strings.TrimSpace(query)

	cached, hit, err := s.catalog.Get(ctx, query)
	if err != nil {
		s.log.WithError(err).Warn("catalog cache read failed")
	} else if hit {
		s.metrics.CatalogLookup(true)
		return cached, nil
	}
	s.metrics.CatalogLookup(false)

	gen := s.catalogGen.Load()
	products, err := s.repo.ListSellableProducts(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.Set(ctx, query, products, s.catalogTTL); err != nil {
		s.log.WithError(err).Warn("catalog cache write failed")
	}
	// Stock changed while we were reading; the entry just written may
	// already be stale.
	if s.catalogGen.Load() != gen {
		s.purgeCatalog(ctx)
	}
	return products, nil
}

func (s *Service) LookupCustomer(ctx context.Context, idNumber string) (domain.Customer, error) {
	idNumber = strings.TrimSpace(idNumber)
	if !idNumberPattern.MatchString(idNumber) {
		return domain.Customer{}, Violations{newViolation(ErrValidation, "id_number", 0, "identity number must be exactly 9 digits")}
	}

	customer, err := s.repo.GetCustomerByIDNumber(ctx, idNumber)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListSales(ctx context.Context, limit int) ([]domain.SaleSummary, error) {
	return s.repo.ListSales(ctx, clampLimit(limit))
}

func (s *Service) GetSale(ctx context.Context, saleID int64) (domain.SaleSummary, error) {
	summary, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return domain.SaleSummary{}, err
	}
	return *summary, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}

// audit writes an audit row inside tx so it commits or rolls back with the
// change it describes.
func audit(ctx context.Context, tx store.Tx, action string, entityType string, entityID int64, detail string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{IDNumber: "system", Role: "system"}
	}

	if err := tx.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorIDNumber: actor.IDNumber,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      strconv.FormatInt(entityID, 10),
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("write audit log %s: %w", action, err)
	}
	return nil
}

// purgeCatalog drops cached listings after stock changed. A failure only
// leaves listings stale until their TTL, so it is logged and swallowed.
func (s *Service) purgeCatalog(ctx context.Context) {
	s.catalogGen.Add(1)
	if err := s.catalog.Purge(ctx); err != nil {
		s.log.WithError(err).Warn("catalog cache purge failed")
	}
}
