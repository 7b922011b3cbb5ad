package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/lock"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/store"
)

const productsCacheKey = "products"

// Service owns the product catalog: reads, the product editor, and every
// stock mutation. Stock changes for a product are serialised through Locker.
type Service struct {
	Store         store.ProductStore
	Locker        lock.Locker
	LockTTL       time.Duration
	Cache         *Cache
	Events        events.Emitter
	Logger        zerolog.Logger
	Now           func() time.Time
	MaxIDAttempts int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Status   model.ProductStatus
}

// ProductInput is the product editor payload.
type ProductInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	SKU      string `json:"sku" validate:"max=40"`
	Category string `json:"category" validate:"max=60"`
	Price    int64  `json:"price" validate:"gte=0"`
	Stock    int    `json:"stock" validate:"gte=0"`
	Status   string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return 10 * time.Second
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil {
		return errors.New("catalog service not configured")
	}
	return nil
}

// ProductLockKey is the lock key guarding a product's stock.
func ProductLockKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

// List returns products matching params ordered by id.
func (s *Service) List(ctx context.Context, params ListParams) ([]model.Product, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var all []model.Product
	ok, err := s.Cache.GetJSON(ctx, productsCacheKey, &all)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("catalog cache read failed")
	}
	if !ok {
		all, err = s.Store.ListProducts(ctx)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		if err := s.Cache.SetJSON(ctx, productsCacheKey, all); err != nil {
			s.Logger.Warn().Err(err).Msg("catalog cache write failed")
		}
	}
	needle := strings.ToLower(strings.TrimSpace(params.Query))
	out := make([]model.Product, 0, len(all))
	for _, p := range all {
		if params.Category != "" && !strings.EqualFold(p.Category, params.Category) {
			continue
		}
		if params.Status != "" && p.Status != params.Status {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.SKU), needle) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Categories returns the distinct product categories sorted by name.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	products, err := s.List(ctx, ListParams{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out, nil
}

// Get returns a product or a NOT_FOUND error.
func (s *Service) Get(ctx context.Context, id int64) (model.Product, error) {
	if err := s.ready(); err != nil {
		return model.Product{}, err
	}
	p, err := s.Store.GetProduct(ctx, id)
	if err != nil {
		return model.Product{}, model.Wrap(err, "produk tidak ditemukan")
	}
	return p, nil
}

// DecrementStock removes qty units from a product's stock. It fails with an
// INSUFFICIENT_STOCK error when qty exceeds the available stock.
func (s *Service) DecrementStock(ctx context.Context, id int64, qty int) error {
	if qty <= 0 {
		return model.NewError(model.ErrValidation, "quantity must be positive")
	}
	return s.ApplyStock(ctx, []model.StockDelta{{ProductID: id, Delta: -qty}})
}

// IncrementStock adds qty units to a product's stock.
func (s *Service) IncrementStock(ctx context.Context, id int64, qty int) error {
	if qty <= 0 {
		return model.NewError(model.ErrValidation, "quantity must be positive")
	}
	return s.ApplyStock(ctx, []model.StockDelta{{ProductID: id, Delta: qty}})
}

// ApplyStock applies every delta or none while holding the lock of each
// touched product.
func (s *Service) ApplyStock(ctx context.Context, deltas []model.StockDelta) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(deltas) == 0 {
		return nil
	}
	keys := make([]string, 0, len(deltas))
	for _, d := range deltas {
		keys = append(keys, ProductLockKey(d.ProductID))
	}
	err := s.withLocks(ctx, keys, func(ctx context.Context) error {
		return s.Store.AdjustStock(ctx, deltas)
	})
	if err != nil {
		if errors.Is(err, model.ErrInsufficientStock) && obs.StockRejectionsTotal != nil {
			obs.StockRejectionsTotal.WithLabelValues(operationLabel(deltas)).Inc()
		}
		return model.Wrap(err, "produk tidak ditemukan")
	}
	s.invalidate(ctx)
	return nil
}

func operationLabel(deltas []model.StockDelta) string {
	for _, d := range deltas {
		if d.Delta < 0 {
			return "decrement"
		}
	}
	return "increment"
}

func (s *Service) withLocks(ctx context.Context, keys []string, fn func(context.Context) error) error {
	if s.Locker == nil {
		return fn(ctx)
	}
	return lock.WithLocks(ctx, s.Locker, keys, s.lockTTL(), fn)
}

// Create adds a product with a clock-derived id, retrying on collision.
func (s *Service) Create(ctx context.Context, in ProductInput) (model.Product, error) {
	if err := s.ready(); err != nil {
		return model.Product{}, err
	}
	if err := model.ValidateStruct(in); err != nil {
		return model.Product{}, err
	}
	now := s.now().UTC()
	p := model.Product{
		Name: in.Name, SKU: in.SKU, Category: in.Category, Price: in.Price, Stock: in.Stock,
		Status: model.ProductStatus(in.Status), CreatedAt: now, UpdatedAt: now,
	}.Normalize()
	attempts := s.MaxIDAttempts
	if attempts <= 0 {
		attempts = 5
	}
	var err error
	for i := 0; i < attempts; i++ {
		p.ID = now.UnixMilli() + int64(i)
		err = s.Store.CreateProduct(ctx, p)
		if !errors.Is(err, model.ErrDuplicateID) {
			break
		}
	}
	if err != nil {
		return model.Product{}, model.Wrap(err, "gagal membuat produk")
	}
	s.invalidate(ctx)
	s.emit(ctx, events.TopicProductCreated, p)
	return p, nil
}

// Update replaces the editable fields of a product under its stock lock.
func (s *Service) Update(ctx context.Context, id int64, in ProductInput) (model.Product, error) {
	if err := s.ready(); err != nil {
		return model.Product{}, err
	}
	if err := model.ValidateStruct(in); err != nil {
		return model.Product{}, err
	}
	var updated model.Product
	err := s.withLocks(ctx, []string{ProductLockKey(id)}, func(ctx context.Context) error {
		cur, err := s.Store.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		next := model.Product{
			ID: id, Name: in.Name, SKU: in.SKU, Category: in.Category, Price: in.Price, Stock: in.Stock,
			Status: model.ProductStatus(in.Status), CreatedAt: cur.CreatedAt, UpdatedAt: s.now().UTC(),
		}.Normalize()
		if err := s.Store.UpdateProduct(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return model.Product{}, model.Wrap(err, "produk tidak ditemukan")
	}
	s.invalidate(ctx)
	s.emit(ctx, events.TopicProductUpdated, updated)
	return updated, nil
}

// Delete removes a product. Ledger records keep their snapshots.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	err := s.withLocks(ctx, []string{ProductLockKey(id)}, func(ctx context.Context) error {
		return s.Store.DeleteProduct(ctx, id)
	})
	if err != nil {
		return model.Wrap(err, "produk tidak ditemukan")
	}
	s.invalidate(ctx)
	s.emit(ctx, events.TopicProductDeleted, map[string]int64{"id": id})
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.Cache.Invalidate(ctx, productsCacheKey); err != nil {
		s.Logger.Warn().Err(err).Msg("catalog cache invalidate failed")
	}
}

func (s *Service) emit(ctx context.Context, topic string, payload any) {
	if s.Events == nil {
		return
	}
	var aggregate string
	switch v := payload.(type) {
	case model.Product:
		aggregate = strconv.FormatInt(v.ID, 10)
	case map[string]int64:
		aggregate = strconv.FormatInt(v["id"], 10)
	}
	if _, err := s.Events.Emit(ctx, topic, aggregate, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Msg("catalog event fan-out failed")
	}
}
