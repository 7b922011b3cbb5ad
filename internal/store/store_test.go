package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/store"
)

// drivers returns a fresh instance of every driver that runs without
// external services.
func drivers(t *testing.T) map[string]store.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	file, err := store.NewFile(filepath.Join(t.TempDir(), "pos.json"))
	require.NoError(t, err)

	return map[string]store.Store{
		"memory": store.NewMemory(),
		"file":   file,
		"redis":  store.NewRedis(rdb, "test:"),
	}
}

func seed(t *testing.T, s store.Store) {
	t.Helper()
	n, err := store.Seed(context.Background(), s, model.SeedProducts())
	require.NoError(t, err)
	require.Equal(t, 8, n)
}

func TestSeedOnlyFillsEmptyCatalog(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)
			n, err := store.Seed(context.Background(), s, model.SeedProducts())
			require.NoError(t, err)
			require.Zero(t, n)

			products, err := s.ListProducts(context.Background())
			require.NoError(t, err)
			require.Len(t, products, 8)
			require.Equal(t, int64(1), products[0].ID)
		})
	}
}

func TestAdjustStockIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)
			err := s.AdjustStock(ctx, []model.StockDelta{
				{ProductID: 1, Delta: -3},
				{ProductID: 3, Delta: -21},
			})
			var se *model.StockError
			require.True(t, errors.As(err, &se), "got %v", err)
			require.Equal(t, int64(3), se.ProductID)
			require.Equal(t, 20, se.Available)

			p, err := s.GetProduct(ctx, 1)
			require.NoError(t, err)
			require.Equal(t, 50, p.Stock)

			require.NoError(t, s.AdjustStock(ctx, []model.StockDelta{{ProductID: 1, Delta: -3}, {ProductID: 3, Delta: -20}}))
			p, _ = s.GetProduct(ctx, 3)
			require.Zero(t, p.Stock)
		})
	}
}

func TestAdjustStockUnknownProduct(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)
			err := s.AdjustStock(context.Background(), []model.StockDelta{{ProductID: 99, Delta: 1}})
			require.ErrorIs(t, err, model.ErrNotFound)
		})
	}
}

func TestAdjustStockRepeatedProductAccumulates(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)
			err := s.AdjustStock(context.Background(), []model.StockDelta{{ProductID: 8, Delta: -20}, {ProductID: 8, Delta: -6}})
			require.ErrorIs(t, err, model.ErrInsufficientStock)
			p, _ := s.GetProduct(context.Background(), 8)
			require.Equal(t, 25, p.Stock)
		})
	}
}

func TestConcurrentDecrementsNeverOversell(t *testing.T) {
	ctx := context.Background()
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)
			var (
				wg sync.WaitGroup
				mu sync.Mutex
				ok int
			)
			for i := 0; i < 40; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := s.AdjustStock(ctx, []model.StockDelta{{ProductID: 3, Delta: -1}}); err == nil {
						mu.Lock()
						ok++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			require.Equal(t, 20, ok)
			p, _ := s.GetProduct(ctx, 3)
			require.Zero(t, p.Stock)
		})
	}
}

func TestTransactionsAppendOnlyInOrder(t *testing.T) {
	ctx := context.Background()
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
			for _, id := range []string{"TXN00000003", "TXN00000001", "TXN00000002"} {
				require.NoError(t, s.AppendTransaction(ctx, model.Transaction{
					ID: id, Date: now, Status: model.TransactionCompleted, PaymentMethod: model.PaymentCash,
					Items: []model.LineItem{{ProductID: 1, Name: "Coffee Latte", UnitPrice: 25000, Quantity: 1}},
				}))
			}
			err := s.AppendTransaction(ctx, model.Transaction{ID: "TXN00000001", Date: now})
			require.ErrorIs(t, err, model.ErrDuplicateID)

			txs, err := s.ListTransactions(ctx)
			require.NoError(t, err)
			require.Len(t, txs, 3)
			require.Equal(t, "TXN00000003", txs[0].ID)
			require.Equal(t, "TXN00000002", txs[2].ID)

			got, err := s.GetTransaction(ctx, "TXN00000001")
			require.NoError(t, err)
			require.Equal(t, int64(25000), got.Items[0].UnitPrice)

			_, err = s.GetTransaction(ctx, "TXN404")
			require.ErrorIs(t, err, model.ErrNotFound)
		})
	}
}

func TestRefundUniquePerTransaction(t *testing.T) {
	ctx := context.Background()
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.AppendTransaction(ctx, model.Transaction{ID: "TXN1", Date: time.Now()}))
			rf := model.Refund{ID: "REF1", OriginalTransactionID: "TXN1", Date: time.Now(), Status: model.RefundCompleted,
				Items: []model.RefundItem{{LineItem: model.LineItem{ProductID: 1, UnitPrice: 25000, Quantity: 2}, Reason: model.ReasonDamaged, Amount: 50000}},
				Total: 50000}
			require.NoError(t, s.AppendRefund(ctx, rf))

			second := rf
			second.ID = "REF2"
			require.ErrorIs(t, s.AppendRefund(ctx, second), model.ErrAlreadyRefunded)

			got, ok, err := s.RefundForTransaction(ctx, "TXN1")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, model.ReasonDamaged, got.Items[0].Reason)

			_, ok, err = s.RefundForTransaction(ctx, "TXN2")
			require.NoError(t, err)
			require.False(t, ok)

			list, err := s.ListRefunds(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
		})
	}
}

func TestUsersLookupByEmailOrUsername(t *testing.T) {
	ctx := context.Background()
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			u := model.User{ID: "u1", FullName: "Siti Kasir", Email: "siti@toko.id", Username: "siti", PasswordHash: "h1", SecurityQuestion: "pet", SecurityAnswerHash: "a"}
			require.NoError(t, s.CreateUser(ctx, u))

			dup := u
			dup.ID = "u2"
			require.ErrorIs(t, s.CreateUser(ctx, dup), model.ErrDuplicateID)

			got, err := s.GetUserByLogin(ctx, "SITI@toko.id")
			require.NoError(t, err)
			require.Equal(t, "u1", got.ID)
			got, err = s.GetUserByLogin(ctx, "Siti")
			require.NoError(t, err)
			require.Equal(t, "h1", got.PasswordHash)

			require.NoError(t, s.UpdatePassword(ctx, "u1", "h2"))
			got, err = s.GetUserByID(ctx, "u1")
			require.NoError(t, err)
			require.Equal(t, "h2", got.PasswordHash)

			_, err = s.GetUserByLogin(ctx, "nobody")
			require.ErrorIs(t, err, model.ErrNotFound)
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "pos.json")
	fs, err := store.NewFile(path)
	require.NoError(t, err)
	seed(t, fs)
	require.NoError(t, fs.AdjustStock(ctx, []model.StockDelta{{ProductID: 1, Delta: -3}}))
	require.NoError(t, fs.CreateUser(ctx, model.User{ID: "u1", Email: "a@b.c", Username: "a", PasswordHash: "secret-hash"}))

	reopened, err := store.NewFile(path)
	require.NoError(t, err)
	p, err := reopened.GetProduct(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 47, p.Stock)
	u, err := reopened.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "secret-hash", u.PasswordHash)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := store.New(context.Background(), store.Options{Driver: "cassandra"})
	require.Error(t, err)

	_, err = store.New(context.Background(), store.Options{Driver: "postgres"})
	require.Error(t, err)

	s, err := store.New(context.Background(), store.Options{})
	require.NoError(t, err)
	require.IsType(t, &store.Memory{}, s)
}
