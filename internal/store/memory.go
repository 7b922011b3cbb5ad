package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/noah-isme/backend-kasir/internal/model"
)

// Memory is an in-process Store. It is the default driver and the base of
// the file driver.
type Memory struct {
	mu           sync.RWMutex
	products     map[int64]model.Product
	transactions map[string]model.Transaction
	txOrder      []string
	refunds      map[string]model.Refund
	refundOrder  []string
	refundByTx   map[string]string
	users        map[string]model.User
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		products:     make(map[int64]model.Product),
		transactions: make(map[string]model.Transaction),
		refunds:      make(map[string]model.Refund),
		refundByTx:   make(map[string]string),
		users:        make(map[string]model.User),
	}
}

func (m *Memory) ListProducts(ctx context.Context) ([]model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	if err := ctx.Err(); err != nil {
		return model.Product{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return model.Product{}, fmt.Errorf("product %d: %w", id, model.ErrNotFound)
	}
	return p, nil
}

func (m *Memory) CreateProduct(ctx context.Context, p model.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; ok {
		return fmt.Errorf("product %d: %w", p.ID, model.ErrDuplicateID)
	}
	m.products[p.ID] = p
	return nil
}

func (m *Memory) UpdateProduct(ctx context.Context, p model.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return fmt.Errorf("product %d: %w", p.ID, model.ErrNotFound)
	}
	m.products[p.ID] = p
	return nil
}

func (m *Memory) DeleteProduct(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return fmt.Errorf("product %d: %w", id, model.ErrNotFound)
	}
	delete(m.products, id)
	return nil
}

func (m *Memory) AdjustStock(ctx context.Context, deltas []model.StockDelta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make(map[int64]int, len(deltas))
	for _, d := range deltas {
		p, ok := m.products[d.ProductID]
		if !ok {
			return fmt.Errorf("product %d: %w", d.ProductID, model.ErrNotFound)
		}
		cur, seen := next[d.ProductID]
		if !seen {
			cur = p.Stock
		}
		if cur+d.Delta < 0 {
			return &model.StockError{ProductID: d.ProductID, Requested: -d.Delta, Available: cur}
		}
		next[d.ProductID] = cur + d.Delta
	}
	for id, stock := range next {
		p := m.products[id]
		p.Stock = stock
		m.products[id] = p
	}
	return nil
}

func (m *Memory) AppendTransaction(ctx context.Context, tx model.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, model.ErrDuplicateID)
	}
	m.transactions[tx.ID] = tx
	m.txOrder = append(m.txOrder, tx.ID)
	return nil
}

func (m *Memory) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return model.Transaction{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[id]
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", id, model.ErrNotFound)
	}
	return tx, nil
}

func (m *Memory) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Transaction, 0, len(m.txOrder))
	for _, id := range m.txOrder {
		out = append(out, m.transactions[id])
	}
	return out, nil
}

func (m *Memory) AppendRefund(ctx context.Context, rf model.Refund) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.refundByTx[rf.OriginalTransactionID]; ok {
		return fmt.Errorf("transaction %s: %w", rf.OriginalTransactionID, model.ErrAlreadyRefunded)
	}
	if _, ok := m.refunds[rf.ID]; ok {
		return fmt.Errorf("refund %s: %w", rf.ID, model.ErrDuplicateID)
	}
	m.refunds[rf.ID] = rf
	m.refundByTx[rf.OriginalTransactionID] = rf.ID
	m.refundOrder = append(m.refundOrder, rf.ID)
	return nil
}

func (m *Memory) GetRefund(ctx context.Context, id string) (model.Refund, error) {
	if err := ctx.Err(); err != nil {
		return model.Refund{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rf, ok := m.refunds[id]
	if !ok {
		return model.Refund{}, fmt.Errorf("refund %s: %w", id, model.ErrNotFound)
	}
	return rf, nil
}

func (m *Memory) RefundForTransaction(ctx context.Context, txID string) (model.Refund, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Refund{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.refundByTx[txID]
	if !ok {
		return model.Refund{}, false, nil
	}
	return m.refunds[id], true, nil
}

func (m *Memory) ListRefunds(ctx context.Context) ([]model.Refund, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Refund, 0, len(m.refundOrder))
	for _, id := range m.refundOrder {
		out = append(out, m.refunds[id])
	}
	return out, nil
}

func (m *Memory) CreateUser(ctx context.Context, u model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return fmt.Errorf("user %s: %w", u.ID, model.ErrDuplicateID)
	}
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) || strings.EqualFold(existing.Username, u.Username) {
			return fmt.Errorf("user %s: %w", u.Email, model.ErrDuplicateID)
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *Memory) GetUserByID(ctx context.Context, id string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	return u, nil
}

func (m *Memory) GetUserByLogin(ctx context.Context, identifier string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	identifier = strings.TrimSpace(identifier)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, identifier) || strings.EqualFold(u.Username, identifier) {
			return u, nil
		}
	}
	return model.User{}, fmt.Errorf("user %s: %w", identifier, model.ErrNotFound)
}

func (m *Memory) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	m.users[id] = u
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() error { return nil }
