package app

import (
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/noah-isme/backend-kasir/internal/analytics"
	"github.com/noah-isme/backend-kasir/internal/auth"
	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/checkout"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/notify"
	"github.com/noah-isme/backend-kasir/internal/payment"
	"github.com/noah-isme/backend-kasir/internal/queue"
	"github.com/noah-isme/backend-kasir/internal/receipt"
	"github.com/noah-isme/backend-kasir/internal/refund"
	"github.com/noah-isme/backend-kasir/internal/terminal"
)

// ReceiptQueueName is the asynq queue receipt e-mails are scheduled on.
const ReceiptQueueName = "receipts"

// Services is the wired domain layer.
type Services struct {
	Bus       *events.Bus
	Catalog   *catalog.Service
	Checkout  *checkout.Service
	Refund    *refund.Service
	Analytics *analytics.Service
	Auth      *auth.Service
	Registry  *terminal.Registry
	Renderer  receipt.Renderer
	Receipts  *queue.Enqueuer
}

// Services builds the domain services on top of the opened infrastructure.
func (d *Dependencies) Services() (*Services, error) {
	cfg := d.Config
	payments := payment.Simulated{PaymentDelay: cfg.PaymentDelay, RefundDelay: cfg.RefundDelay}

	svc := &Services{
		Renderer: receipt.Renderer{
			Store:    receipt.StoreInfo{Name: cfg.StoreName, Address: cfg.StoreAddress, Phone: cfg.StorePhone},
			Currency: receipt.NewCurrency(cfg.CurrencyCode, cfg.CurrencyFractionDigits, language.Indonesian),
			Location: time.Local,
		},
	}
	if d.TaskClient != nil {
		svc.Receipts = &queue.Enqueuer{Client: d.TaskClient, Queue: ReceiptQueueName}
	}

	svc.Analytics = &analytics.Service{
		Products:     d.Store,
		Transactions: d.Store,
		Refunds:      d.Store,
		R:            d.Redis,
		Prefix:       cfg.RedisPrefix,
		TTL:          cfg.AnalyticsCacheTTL,
		DefaultRange: 30,
		Location:     time.Local,
	}

	bus := &events.Bus{
		Notifiers: []events.Notifier{
			notify.LogNotifier{Logger: d.Logger.With().Str("component", "events").Logger()},
			svc.Analytics,
		},
	}
	if d.Redis != nil {
		bus.Recorder = events.RedisStream{R: d.Redis, Stream: cfg.RedisPrefix + "events"}
	}
	if svc.Receipts != nil {
		bus.Notifiers = append(bus.Notifiers, notify.ReceiptNotifier{Queue: svc.Receipts, Enabled: cfg.SMTPEnabled()})
	}
	svc.Bus = bus

	svc.Catalog = &catalog.Service{
		Store:         d.Store,
		Locker:        d.Locker,
		LockTTL:       cfg.LockTTL,
		Cache:         catalog.NewCache(d.Redis, cfg.CatalogCacheTTL, cfg.RedisPrefix),
		Events:        bus,
		Logger:        d.Logger.With().Str("component", "catalog").Logger(),
		MaxIDAttempts: cfg.IDMaxAttempts,
	}
	svc.Checkout = &checkout.Service{
		Catalog:       svc.Catalog,
		Ledger:        d.Store,
		Payments:      payments,
		TaxBps:        cfg.TaxRateBps,
		Events:        bus,
		Logger:        d.Logger.With().Str("component", "checkout").Logger(),
		MaxIDAttempts: cfg.IDMaxAttempts,
	}
	svc.Refund = &refund.Service{
		Catalog:       svc.Catalog,
		Transactions:  d.Store,
		Refunds:       d.Store,
		Payments:      payments,
		Events:        bus,
		Logger:        d.Logger.With().Str("component", "refund").Logger(),
		MaxIDAttempts: cfg.IDMaxAttempts,
	}
	svc.Registry = terminal.NewRegistry(svc.Refund, cfg.SessionIdleTTL)

	authSvc, err := auth.NewService(auth.Config{
		Users:          d.Store,
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
		Logger:         d.Logger.With().Str("component", "auth").Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}
	svc.Auth = authSvc
	return svc, nil
}
