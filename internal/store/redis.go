package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-kasir/internal/model"
)

// Redis is a Store kept in hashes and lists. Product stock lives in its own
// hash so stock scripts never touch the JSON documents.
type Redis struct {
	R      *redis.Client
	Prefix string
}

var _ Store = (*Redis)(nil)

// NewRedis wraps an existing client. prefix namespaces every key.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{R: client, Prefix: prefix}
}

func (s *Redis) key(parts ...string) string {
	return s.Prefix + strings.Join(parts, ":")
}

var (
	putProductScript = redis.NewScript(`
local exists = redis.call('HEXISTS', KEYS[1], ARGV[1])
if ARGV[4] == 'create' and exists == 1 then return 0 end
if ARGV[4] == 'update' and exists == 0 then return -1 end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
return 1
`)

	deleteProductScript = redis.NewScript(`
local n = redis.call('HDEL', KEYS[1], ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
return n
`)

	// returns {0} on success, {-1, idx} for an unknown product and
	// {-2, idx, available} when a delta would go below zero.
	adjustStockScript = redis.NewScript(`
local pending = {}
local n = #ARGV / 2
for i = 1, n do
  local id = ARGV[2*i-1]
  local delta = tonumber(ARGV[2*i])
  local cur = pending[id]
  if cur == nil then
    local raw = redis.call('HGET', KEYS[1], id)
    if not raw then return {-1, i} end
    cur = tonumber(raw)
  end
  if cur + delta < 0 then return {-2, i, cur} end
  pending[id] = cur + delta
end
for id, stock in pairs(pending) do
  redis.call('HSET', KEYS[1], id, stock)
end
return {0}
`)

	appendTransactionScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then return 0 end
redis.call('RPUSH', KEYS[2], ARGV[1])
return 1
`)

	appendRefundScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[3], ARGV[2]) == 1 then return -1 end
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[3]) == 0 then return 0 end
redis.call('HSET', KEYS[3], ARGV[2], ARGV[1])
redis.call('RPUSH', KEYS[2], ARGV[1])
return 1
`)

	createUserScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then return 0 end
if redis.call('HEXISTS', KEYS[2], ARGV[3]) == 1 then return 0 end
if redis.call('HEXISTS', KEYS[2], ARGV[4]) == 1 then return 0 end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[3], ARGV[1])
redis.call('HSET', KEYS[2], ARGV[4], ARGV[1])
return 1
`)
)

func (s *Redis) putProduct(ctx context.Context, p model.Product, mode string) (int64, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return 0, err
	}
	id := strconv.FormatInt(p.ID, 10)
	return putProductScript.Run(ctx, s.R,
		[]string{s.key("products"), s.key("products", "stock")},
		id, doc, p.Stock, mode).Int64()
}

func (s *Redis) ListProducts(ctx context.Context) ([]model.Product, error) {
	docs, err := s.R.HGetAll(ctx, s.key("products")).Result()
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	stock, err := s.R.HGetAll(ctx, s.key("products", "stock")).Result()
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	out := make([]model.Product, 0, len(docs))
	for id, doc := range docs {
		var p model.Product
		if err := decodeStrict([]byte(doc), &p); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", id, err)
		}
		if raw, ok := stock[id]; ok {
			p.Stock, _ = strconv.Atoi(raw)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Redis) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	field := strconv.FormatInt(id, 10)
	pipe := s.R.Pipeline()
	docCmd := pipe.HGet(ctx, s.key("products"), field)
	stockCmd := pipe.HGet(ctx, s.key("products", "stock"), field)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return model.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	doc, err := docCmd.Result()
	if errors.Is(err, redis.Nil) {
		return model.Product{}, fmt.Errorf("product %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Product{}, err
	}
	var p model.Product
	if err := decodeStrict([]byte(doc), &p); err != nil {
		return model.Product{}, fmt.Errorf("decode product %d: %w", id, err)
	}
	if stock, err := stockCmd.Int(); err == nil {
		p.Stock = stock
	}
	return p, nil
}

func (s *Redis) CreateProduct(ctx context.Context, p model.Product) error {
	res, err := s.putProduct(ctx, p, "create")
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	if res == 0 {
		return fmt.Errorf("product %d: %w", p.ID, model.ErrDuplicateID)
	}
	return nil
}

func (s *Redis) UpdateProduct(ctx context.Context, p model.Product) error {
	res, err := s.putProduct(ctx, p, "update")
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if res < 0 {
		return fmt.Errorf("product %d: %w", p.ID, model.ErrNotFound)
	}
	return nil
}

func (s *Redis) DeleteProduct(ctx context.Context, id int64) error {
	n, err := deleteProductScript.Run(ctx, s.R,
		[]string{s.key("products"), s.key("products", "stock")},
		strconv.FormatInt(id, 10)).Int64()
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *Redis) AdjustStock(ctx context.Context, deltas []model.StockDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	args := make([]any, 0, len(deltas)*2)
	for _, d := range deltas {
		args = append(args, strconv.FormatInt(d.ProductID, 10), d.Delta)
	}
	res, err := adjustStockScript.Run(ctx, s.R, []string{s.key("products", "stock")}, args...).Int64Slice()
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	switch res[0] {
	case 0:
		return nil
	case -1:
		d := deltas[res[1]-1]
		return fmt.Errorf("product %d: %w", d.ProductID, model.ErrNotFound)
	default:
		d := deltas[res[1]-1]
		return &model.StockError{ProductID: d.ProductID, Requested: -d.Delta, Available: int(res[2])}
	}
}

func (s *Redis) AppendTransaction(ctx context.Context, tx model.Transaction) error {
	doc, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}
	ok, err := appendTransactionScript.Run(ctx, s.R,
		[]string{s.key("transactions"), s.key("transactions", "order")}, tx.ID, doc).Int64()
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("transaction %s: %w", tx.ID, model.ErrDuplicateID)
	}
	return nil
}

func (s *Redis) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	var tx model.Transaction
	doc, err := s.R.HGet(ctx, s.key("transactions"), id).Result()
	if errors.Is(err, redis.Nil) {
		return tx, fmt.Errorf("transaction %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return tx, fmt.Errorf("get transaction: %w", err)
	}
	if err := decodeStrict([]byte(doc), &tx); err != nil {
		return tx, fmt.Errorf("decode transaction %s: %w", id, err)
	}
	return tx, nil
}

func (s *Redis) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	var out []model.Transaction
	err := s.listOrdered(ctx, "transactions", func(doc string) error {
		var tx model.Transaction
		if err := decodeStrict([]byte(doc), &tx); err != nil {
			return err
		}
		out = append(out, tx)
		return nil
	})
	return out, err
}

func (s *Redis) AppendRefund(ctx context.Context, rf model.Refund) error {
	doc, err := json.Marshal(rf)
	if err != nil {
		return fmt.Errorf("encode refund: %w", err)
	}
	res, err := appendRefundScript.Run(ctx, s.R,
		[]string{s.key("refunds"), s.key("refunds", "order"), s.key("refunds", "by-tx")},
		rf.ID, rf.OriginalTransactionID, doc).Int64()
	if err != nil {
		return fmt.Errorf("append refund: %w", err)
	}
	switch res {
	case -1:
		return fmt.Errorf("transaction %s: %w", rf.OriginalTransactionID, model.ErrAlreadyRefunded)
	case 0:
		return fmt.Errorf("refund %s: %w", rf.ID, model.ErrDuplicateID)
	}
	return nil
}

func (s *Redis) GetRefund(ctx context.Context, id string) (model.Refund, error) {
	var rf model.Refund
	doc, err := s.R.HGet(ctx, s.key("refunds"), id).Result()
	if errors.Is(err, redis.Nil) {
		return rf, fmt.Errorf("refund %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return rf, fmt.Errorf("get refund: %w", err)
	}
	if err := decodeStrict([]byte(doc), &rf); err != nil {
		return rf, fmt.Errorf("decode refund %s: %w", id, err)
	}
	return rf, nil
}

func (s *Redis) RefundForTransaction(ctx context.Context, txID string) (model.Refund, bool, error) {
	id, err := s.R.HGet(ctx, s.key("refunds", "by-tx"), txID).Result()
	if errors.Is(err, redis.Nil) {
		return model.Refund{}, false, nil
	}
	if err != nil {
		return model.Refund{}, false, fmt.Errorf("refund for %s: %w", txID, err)
	}
	rf, err := s.GetRefund(ctx, id)
	if err != nil {
		return model.Refund{}, false, err
	}
	return rf, true, nil
}

func (s *Redis) ListRefunds(ctx context.Context) ([]model.Refund, error) {
	var out []model.Refund
	err := s.listOrdered(ctx, "refunds", func(doc string) error {
		var rf model.Refund
		if err := decodeStrict([]byte(doc), &rf); err != nil {
			return err
		}
		out = append(out, rf)
		return nil
	})
	return out, err
}

func (s *Redis) listOrdered(ctx context.Context, collection string, fn func(doc string) error) error {
	ids, err := s.R.LRange(ctx, s.key(collection, "order"), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("list %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return nil
	}
	docs, err := s.R.HMGet(ctx, s.key(collection), ids...).Result()
	if err != nil {
		return fmt.Errorf("list %s: %w", collection, err)
	}
	for i, raw := range docs {
		doc, ok := raw.(string)
		if !ok {
			continue
		}
		if err := fn(doc); err != nil {
			return fmt.Errorf("decode %s %s: %w", collection, ids[i], err)
		}
	}
	return nil
}

func (s *Redis) CreateUser(ctx context.Context, u model.User) error {
	doc, err := json.Marshal(toFileUser(u))
	if err != nil {
		return err
	}
	ok, err := createUserScript.Run(ctx, s.R,
		[]string{s.key("users"), s.key("users", "login")},
		u.ID, doc, strings.ToLower(u.Email), strings.ToLower(u.Username)).Int64()
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("user %s: %w", u.Email, model.ErrDuplicateID)
	}
	return nil
}

func (s *Redis) GetUserByID(ctx context.Context, id string) (model.User, error) {
	doc, err := s.R.HGet(ctx, s.key("users"), id).Result()
	if errors.Is(err, redis.Nil) {
		return model.User{}, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	var fu fileUser
	if err := decodeStrict([]byte(doc), &fu); err != nil {
		return model.User{}, fmt.Errorf("decode user %s: %w", id, err)
	}
	return fu.toModel(), nil
}

func (s *Redis) GetUserByLogin(ctx context.Context, identifier string) (model.User, error) {
	login := strings.ToLower(strings.TrimSpace(identifier))
	id, err := s.R.HGet(ctx, s.key("users", "login"), login).Result()
	if errors.Is(err, redis.Nil) {
		return model.User{}, fmt.Errorf("user %s: %w", login, model.ErrNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

func (s *Redis) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	u.PasswordHash = passwordHash
	doc, err := json.Marshal(toFileUser(u))
	if err != nil {
		return err
	}
	return s.R.HSet(ctx, s.key("users"), id, doc).Err()
}

func (s *Redis) Ping(ctx context.Context) error { return s.R.Ping(ctx).Err() }

// Close is a no-op; the client is owned by the caller.
func (s *Redis) Close() error { return nil }
