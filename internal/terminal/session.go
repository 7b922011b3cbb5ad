// Package terminal keeps one point-of-sale session per signed-in operator:
// the open cart, its discount and payment method, and the refund workflow.
package terminal

import (
	"sync"
	"time"

	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/refund"
)

// Session is a single operator's terminal. Callers hold Lock while reading or
// mutating it.
type Session struct {
	sync.Mutex

	Operator      common.Operator
	Cart          *cart.Cart
	DiscountBps   int
	PaymentMethod model.PaymentMethod
	Refund        *refund.Workflow

	lastSeen time.Time
}

// ResetSale clears the cart, discount and payment method after a checkout.
func (s *Session) ResetSale() {
	s.Cart.Clear()
	s.DiscountBps = 0
	s.PaymentMethod = ""
}

// Registry owns the sessions of every operator.
type Registry struct {
	backend refund.Backend
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns a registry whose refund workflows use backend. Sessions
// idle for longer than idleTTL are dropped by Sweep; zero disables sweeping.
func NewRegistry(backend refund.Backend, idleTTL time.Duration) *Registry {
	return &Registry{
		backend:  backend,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// SetClock overrides the registry clock.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Session returns the operator's session, creating it on first use.
func (r *Registry) Session(op common.Operator) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[op.ID]
	if !ok {
		s = &Session{
			Operator: op,
			Cart:     cart.New(),
			Refund:   refund.NewWorkflow(r.backend),
		}
		r.sessions[op.ID] = s
	}
	s.Operator.Name = op.Name
	s.lastSeen = r.now()
	return s
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle past the TTL and returns how many were removed.
// Sessions with a refund commit in flight are kept.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.idleTTL)
	removed := 0
	for id, s := range r.sessions {
		if s.lastSeen.After(cutoff) {
			continue
		}
		if s.Refund.State() == refund.StateCommitting {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	return removed
}
