package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-kasir/internal/model"
)

const (
	pgUniqueViolation     = "23505"
	refundsByTxConstraint = "refunds_original_transaction_id_key"
	productColumns        = "id, name, sku, category, price, stock, status, created_at, updated_at"
	transactionColumns    = "id, created_at, items, subtotal, discount, tax, total, discount_bps, tax_bps, payment_method, status, processed_by, customer_name, customer_email"
	refundColumns         = "id, original_transaction_id, created_at, items, total, status, processed_by, customer_name"
	userColumns           = "id, full_name, email, username, birth_date, password_hash, security_question, security_answer_hash, created_at, updated_at"
)

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	Pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{Pool: pool}
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var p model.Product
	var status string
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Category, &p.Price, &p.Stock, &status, &p.CreatedAt, &p.UpdatedAt)
	p.Status = model.ProductStatus(status)
	return p, err
}

func (s *Postgres) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.Pool.Query(ctx, "SELECT "+productColumns+" FROM products ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	p, err := scanProduct(s.Pool.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Product{}, fmt.Errorf("product %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (s *Postgres) CreateProduct(ctx context.Context, p model.Product) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.Name, p.SKU, p.Category, p.Price, p.Stock, string(p.Status), p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err, "") {
		return fmt.Errorf("product %d: %w", p.ID, model.ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateProduct(ctx context.Context, p model.Product) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE products SET name=$2, sku=$3, category=$4, price=$5, stock=$6, status=$7, updated_at=$8 WHERE id=$1`,
		p.ID, p.Name, p.SKU, p.Category, p.Price, p.Stock, string(p.Status), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", p.ID, model.ErrNotFound)
	}
	return nil
}

func (s *Postgres) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// AdjustStock runs every conditional update in one transaction, in product id
// order, so concurrent adjustments cannot deadlock.
func (s *Postgres) AdjustStock(ctx context.Context, deltas []model.StockDelta) error {
	merged := mergeDeltas(deltas)
	return pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		for _, d := range merged {
			var stock int
			err := tx.QueryRow(ctx,
				`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1 AND stock + $2 >= 0 RETURNING stock`,
				d.ProductID, d.Delta).Scan(&stock)
			if err == nil {
				continue
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("adjust stock %d: %w", d.ProductID, err)
			}
			err = tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, d.ProductID).Scan(&stock)
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("product %d: %w", d.ProductID, model.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("read stock %d: %w", d.ProductID, err)
			}
			return &model.StockError{ProductID: d.ProductID, Requested: -d.Delta, Available: stock}
		}
		return nil
	})
}

func (s *Postgres) AppendTransaction(ctx context.Context, t model.Transaction) error {
	items, err := json.Marshal(t.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	_, err = s.Pool.Exec(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		t.ID, t.Date, items, t.Subtotal, t.Discount, t.Tax, t.Total, t.DiscountBps, t.TaxBps,
		string(t.PaymentMethod), string(t.Status), t.ProcessedBy, t.CustomerName, t.CustomerEmail)
	if isUniqueViolation(err, "") {
		return fmt.Errorf("transaction %s: %w", t.ID, model.ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var (
		t      model.Transaction
		items  []byte
		method string
		status string
	)
	if err := row.Scan(&t.ID, &t.Date, &items, &t.Subtotal, &t.Discount, &t.Tax, &t.Total, &t.DiscountBps, &t.TaxBps,
		&method, &status, &t.ProcessedBy, &t.CustomerName, &t.CustomerEmail); err != nil {
		return t, err
	}
	t.PaymentMethod = model.PaymentMethod(method)
	t.Status = model.TransactionStatus(status)
	if err := decodeStrict(items, &t.Items); err != nil {
		return t, fmt.Errorf("decode items %s: %w", t.ID, err)
	}
	return t, nil
}

func (s *Postgres) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	t, err := scanTransaction(s.Pool.QueryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

func (s *Postgres) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	rows, err := s.Pool.Query(ctx, "SELECT "+transactionColumns+" FROM transactions ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Postgres) AppendRefund(ctx context.Context, rf model.Refund) error {
	items, err := json.Marshal(rf.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	_, err = s.Pool.Exec(ctx,
		`INSERT INTO refunds (`+refundColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rf.ID, rf.OriginalTransactionID, rf.Date, items, rf.Total, string(rf.Status), rf.ProcessedBy, rf.CustomerName)
	if isUniqueViolation(err, refundsByTxConstraint) {
		return fmt.Errorf("transaction %s: %w", rf.OriginalTransactionID, model.ErrAlreadyRefunded)
	}
	if isUniqueViolation(err, "") {
		return fmt.Errorf("refund %s: %w", rf.ID, model.ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("append refund: %w", err)
	}
	return nil
}

func scanRefund(row pgx.Row) (model.Refund, error) {
	var (
		rf     model.Refund
		items  []byte
		status string
	)
	if err := row.Scan(&rf.ID, &rf.OriginalTransactionID, &rf.Date, &items, &rf.Total, &status, &rf.ProcessedBy, &rf.CustomerName); err != nil {
		return rf, err
	}
	rf.Status = model.RefundStatus(status)
	if err := decodeStrict(items, &rf.Items); err != nil {
		return rf, fmt.Errorf("decode items %s: %w", rf.ID, err)
	}
	return rf, nil
}

func (s *Postgres) GetRefund(ctx context.Context, id string) (model.Refund, error) {
	rf, err := scanRefund(s.Pool.QueryRow(ctx, "SELECT "+refundColumns+" FROM refunds WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Refund{}, fmt.Errorf("refund %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Refund{}, fmt.Errorf("get refund %s: %w", id, err)
	}
	return rf, nil
}

func (s *Postgres) RefundForTransaction(ctx context.Context, txID string) (model.Refund, bool, error) {
	rf, err := scanRefund(s.Pool.QueryRow(ctx, "SELECT "+refundColumns+" FROM refunds WHERE original_transaction_id = $1", txID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Refund{}, false, nil
	}
	if err != nil {
		return model.Refund{}, false, fmt.Errorf("refund for %s: %w", txID, err)
	}
	return rf, true, nil
}

func (s *Postgres) ListRefunds(ctx context.Context) ([]model.Refund, error) {
	rows, err := s.Pool.Query(ctx, "SELECT "+refundColumns+" FROM refunds ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	defer rows.Close()
	var out []model.Refund
	for rows.Next() {
		rf, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rf)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateUser(ctx context.Context, u model.User) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		u.ID, u.FullName, u.Email, u.Username, u.BirthDate, u.PasswordHash, u.SecurityQuestion, u.SecurityAnswerHash, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err, "") {
		return fmt.Errorf("user %s: %w", u.Email, model.ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Username, &u.BirthDate, &u.PasswordHash,
		&u.SecurityQuestion, &u.SecurityAnswerHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Postgres) GetUserByID(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(s.Pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	return u, err
}

func (s *Postgres) GetUserByLogin(ctx context.Context, identifier string) (model.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	u, err := scanUser(s.Pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE lower(email) = $1 OR lower(username) = $1 LIMIT 1", identifier))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %s: %w", identifier, model.ErrNotFound)
	}
	return u, err
}

func (s *Postgres) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error { return s.Pool.Ping(ctx) }

func (s *Postgres) Close() error {
	s.Pool.Close()
	return nil
}

// isUniqueViolation reports a 23505 error, optionally limited to constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// mergeDeltas folds repeated products together and sorts by id.
func mergeDeltas(deltas []model.StockDelta) []model.StockDelta {
	sum := make(map[int64]int, len(deltas))
	for _, d := range deltas {
		sum[d.ProductID] += d.Delta
	}
	out := make([]model.StockDelta, 0, len(sum))
	for id, delta := range sum {
		out = append(out, model.StockDelta{ProductID: id, Delta: delta})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// decodeStrict unmarshals JSON rejecting unknown fields.
func decodeStrict(b []byte, dst any) error {
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
