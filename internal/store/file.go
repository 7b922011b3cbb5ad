package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/backend-kasir/internal/model"
)

// File is a JSON file-backed Store. Every successful mutation rewrites the
// document through a temporary file and rename.
type File struct {
	*Memory
	mu   sync.Mutex
	path string
}

var _ Store = (*File)(nil)

// fileDocument is the on-disk layout. Unknown fields are rejected on load.
type fileDocument struct {
	Products     []model.Product     `json:"posProducts"`
	Transactions []model.Transaction `json:"posTransactions"`
	Refunds      []model.Refund      `json:"posRefunds"`
	Users        []fileUser          `json:"users"`
}

type fileUser struct {
	ID                 string    `json:"id"`
	FullName           string    `json:"fullName"`
	Email              string    `json:"email"`
	Username           string    `json:"username"`
	BirthDate          string    `json:"birthDate,omitempty"`
	PasswordHash       string    `json:"passwordHash"`
	SecurityQuestion   string    `json:"securityQuestion"`
	SecurityAnswerHash string    `json:"securityAnswerHash"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toFileUser(u model.User) fileUser {
	return fileUser{
		ID: u.ID, FullName: u.FullName, Email: u.Email, Username: u.Username,
		BirthDate: u.BirthDate, PasswordHash: u.PasswordHash,
		SecurityQuestion: u.SecurityQuestion, SecurityAnswerHash: u.SecurityAnswerHash,
		CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

func (u fileUser) toModel() model.User {
	return model.User{
		ID: u.ID, FullName: u.FullName, Email: u.Email, Username: u.Username,
		BirthDate: u.BirthDate, PasswordHash: u.PasswordHash,
		SecurityQuestion: u.SecurityQuestion, SecurityAnswerHash: u.SecurityAnswerHash,
		CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

// NewFile opens (or lazily creates) the store at path.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("file path required for file store")
	}
	f := &File{Memory: NewMemory(), path: path}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) load() error {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var doc fileDocument
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode %s: %w", f.path, err)
	}
	m := f.Memory
	for _, p := range doc.Products {
		if p.Stock < 0 || p.Price < 0 {
			return fmt.Errorf("decode %s: product %d has negative price or stock", f.path, p.ID)
		}
		m.products[p.ID] = p
	}
	for _, tx := range doc.Transactions {
		m.transactions[tx.ID] = tx
		m.txOrder = append(m.txOrder, tx.ID)
	}
	for _, rf := range doc.Refunds {
		m.refunds[rf.ID] = rf
		m.refundOrder = append(m.refundOrder, rf.ID)
		m.refundByTx[rf.OriginalTransactionID] = rf.ID
	}
	for _, u := range doc.Users {
		m.users[u.ID] = u.toModel()
	}
	return nil
}

func (f *File) save(ctx context.Context) error {
	products, err := f.Memory.ListProducts(ctx)
	if err != nil {
		return err
	}
	txs, err := f.Memory.ListTransactions(ctx)
	if err != nil {
		return err
	}
	refunds, err := f.Memory.ListRefunds(ctx)
	if err != nil {
		return err
	}
	doc := fileDocument{Products: products, Transactions: txs, Refunds: refunds}
	f.Memory.mu.RLock()
	for _, u := range f.Memory.users {
		doc.Users = append(doc.Users, toFileUser(u))
	}
	f.Memory.mu.RUnlock()
	sort.Slice(doc.Users, func(i, j int) bool { return doc.Users[i].ID < doc.Users[j].ID })

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// persist runs op and saves the document when op succeeds.
func (f *File) persist(ctx context.Context, op func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := op(); err != nil {
		return err
	}
	return f.save(context.WithoutCancel(ctx))
}

func (f *File) CreateProduct(ctx context.Context, p model.Product) error {
	return f.persist(ctx, func() error { return f.Memory.CreateProduct(ctx, p) })
}

func (f *File) UpdateProduct(ctx context.Context, p model.Product) error {
	return f.persist(ctx, func() error { return f.Memory.UpdateProduct(ctx, p) })
}

func (f *File) DeleteProduct(ctx context.Context, id int64) error {
	return f.persist(ctx, func() error { return f.Memory.DeleteProduct(ctx, id) })
}

func (f *File) AdjustStock(ctx context.Context, deltas []model.StockDelta) error {
	return f.persist(ctx, func() error { return f.Memory.AdjustStock(ctx, deltas) })
}

func (f *File) AppendTransaction(ctx context.Context, tx model.Transaction) error {
	return f.persist(ctx, func() error { return f.Memory.AppendTransaction(ctx, tx) })
}

func (f *File) AppendRefund(ctx context.Context, rf model.Refund) error {
	return f.persist(ctx, func() error { return f.Memory.AppendRefund(ctx, rf) })
}

func (f *File) CreateUser(ctx context.Context, u model.User) error {
	return f.persist(ctx, func() error { return f.Memory.CreateUser(ctx, u) })
}

func (f *File) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return f.persist(ctx, func() error { return f.Memory.UpdatePassword(ctx, id, passwordHash) })
}

func (f *File) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := os.Stat(filepath.Dir(f.path))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
