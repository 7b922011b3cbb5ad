package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/store"
)

// Service derives dashboard figures from the ledgers, cached in redis.
type Service struct {
	Products     store.ProductStore
	Transactions store.TransactionStore
	Refunds      store.RefundStore
	R            *redis.Client
	Prefix       string
	TTL          time.Duration
	DefaultRange int
	Location     *time.Location
	Now          func() time.Time
}

// TopProduct is a product ranked by units sold net of refunds.
type TopProduct struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Quantity  int    `json:"quantity"`
	Revenue   int64  `json:"revenue"`
}

// DailySales aggregates one calendar day.
type DailySales struct {
	Day          string `json:"day"`
	Transactions int    `json:"transactions"`
	Revenue      int64  `json:"revenue"`
	Refunds      int64  `json:"refunds"`
}

// Dashboard is the summary shown on the operator home screen.
type Dashboard struct {
	TotalRevenue       int64               `json:"totalRevenue"`
	TransactionCount   int                 `json:"transactionCount"`
	ProductCount       int                 `json:"productCount"`
	TodayTransactions  int                 `json:"todayTransactions"`
	TodayRevenue       int64               `json:"todayRevenue"`
	RefundCount        int                 `json:"refundCount"`
	RefundTotal        int64               `json:"refundTotal"`
	NetRevenue         int64               `json:"netRevenue"`
	RecentTransactions []model.Transaction `json:"recentTransactions"`
	TopProducts        []TopProduct        `json:"topProducts"`
	GeneratedAt        time.Time           `json:"generatedAt"`
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.Local
}

func (s *Service) ready() error {
	if s == nil || s.Products == nil || s.Transactions == nil || s.Refunds == nil {
		return fmt.Errorf("analytics service not configured")
	}
	return nil
}

func (s *Service) cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts)+1)
	formatted = append(formatted, s.Prefix+"an")
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// Dashboard returns the summary, from cache when fresh.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	if err := s.ready(); err != nil {
		return Dashboard{}, err
	}
	key := s.cacheKey("dashboard", s.now().In(s.loc()).Format("2006-01-02"))
	var cached Dashboard
	if s.load(ctx, key, &cached) {
		return cached, nil
	}
	d, err := s.computeDashboard(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	s.store(ctx, key, d)
	return d, nil
}

// Refresh recomputes the dashboard and overwrites the cached copy.
func (s *Service) Refresh(ctx context.Context) (Dashboard, error) {
	if err := s.ready(); err != nil {
		return Dashboard{}, err
	}
	d, err := s.computeDashboard(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	s.store(ctx, s.cacheKey("dashboard", s.now().In(s.loc()).Format("2006-01-02")), d)
	return d, nil
}

func (s *Service) computeDashboard(ctx context.Context) (Dashboard, error) {
	products, err := s.Products.ListProducts(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list products: %w", err)
	}
	txs, err := s.Transactions.ListTransactions(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list transactions: %w", err)
	}
	refunds, err := s.Refunds.ListRefunds(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list refunds: %w", err)
	}
	now := s.now().In(s.loc())
	today := now.Format("2006-01-02")
	d := Dashboard{
		ProductCount:     len(products),
		TransactionCount: len(txs),
		RefundCount:      len(refunds),
		GeneratedAt:      now.UTC(),
	}
	for _, tx := range txs {
		d.TotalRevenue += tx.Total
		if tx.Date.In(s.loc()).Format("2006-01-02") == today {
			d.TodayTransactions++
			d.TodayRevenue += tx.Total
		}
	}
	for _, rf := range refunds {
		d.RefundTotal += rf.Total
	}
	d.NetRevenue = d.TotalRevenue - d.RefundTotal
	d.RecentTransactions = make([]model.Transaction, 0, 5)
	for i := len(txs) - 1; i >= 0 && len(d.RecentTransactions) < 5; i-- {
		d.RecentTransactions = append(d.RecentTransactions, txs[i])
	}
	d.TopProducts = rankProducts(txs, refunds)
	if len(d.TopProducts) > 5 {
		d.TopProducts = d.TopProducts[:5]
	}
	return d, nil
}

// rankProducts orders products by net units sold, then revenue, then id.
func rankProducts(txs []model.Transaction, refunds []model.Refund) []TopProduct {
	byID := make(map[int64]*TopProduct)
	get := func(l model.LineItem) *TopProduct {
		tp, ok := byID[l.ProductID]
		if !ok {
			tp = &TopProduct{ProductID: l.ProductID, Name: l.Name, Category: l.Category}
			byID[l.ProductID] = tp
		}
		return tp
	}
	for _, tx := range txs {
		for _, l := range tx.Items {
			tp := get(l)
			tp.Quantity += l.Quantity
			tp.Revenue += l.Total()
		}
	}
	for _, rf := range refunds {
		for _, it := range rf.Items {
			tp := get(it.LineItem)
			tp.Quantity -= it.Quantity
			tp.Revenue -= it.Amount
		}
	}
	out := make([]TopProduct, 0, len(byID))
	for _, tp := range byID {
		if tp.Quantity <= 0 {
			continue
		}
		out = append(out, *tp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}

// SalesRange returns per-day sales between from (inclusive) and to (exclusive).
func (s *Service) SalesRange(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	key := s.cacheKey("sales", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var rows []DailySales
	if s.load(ctx, key, &rows) {
		return rows, nil
	}
	txs, err := s.Transactions.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	refunds, err := s.Refunds.ListRefunds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	days := make(map[string]*DailySales)
	day := func(t time.Time) *DailySales {
		k := t.In(s.loc()).Format("2006-01-02")
		d, ok := days[k]
		if !ok {
			d = &DailySales{Day: k}
			days[k] = d
		}
		return d
	}
	inRange := func(t time.Time) bool { return !t.Before(from) && t.Before(to) }
	for _, tx := range txs {
		if inRange(tx.Date) {
			d := day(tx.Date)
			d.Transactions++
			d.Revenue += tx.Total
		}
	}
	for _, rf := range refunds {
		if inRange(rf.Date) {
			day(rf.Date).Refunds += rf.Total
		}
	}
	rows = make([]DailySales, 0, len(days))
	for _, d := range days {
		rows = append(rows, *d)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Day < rows[j].Day })
	s.store(ctx, key, rows)
	return rows, nil
}

// TopProducts returns products ranked by net units sold.
func (s *Service) TopProducts(ctx context.Context, limit, offset int) ([]TopProduct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	key := s.cacheKey("top", limit, offset)
	var rows []TopProduct
	if s.load(ctx, key, &rows) {
		return rows, nil
	}
	txs, err := s.Transactions.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	refunds, err := s.Refunds.ListRefunds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	ranked := rankProducts(txs, refunds)
	if offset > len(ranked) {
		offset = len(ranked)
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	rows = ranked[offset:end]
	s.store(ctx, key, rows)
	return rows, nil
}

// Invalidate drops every cached analytics entry.
func (s *Service) Invalidate(ctx context.Context) error {
	if s == nil || s.R == nil {
		return nil
	}
	iter := s.R.Scan(ctx, 0, s.cacheKey("*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.R.Del(ctx, keys...).Err()
}

// Notify implements events.Notifier: ledger changes invalidate the cache.
func (s *Service) Notify(ctx context.Context, event events.Event) error {
	switch event.Topic {
	case events.TopicTransactionCompleted, events.TopicRefundCompleted,
		events.TopicProductCreated, events.TopicProductDeleted:
		return s.Invalidate(ctx)
	}
	return nil
}

func (s *Service) load(ctx context.Context, key string, dst any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
