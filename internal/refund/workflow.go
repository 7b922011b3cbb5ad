package refund

import (
	"context"
	"sync"

	"github.com/noah-isme/backend-kasir/internal/model"
)

// State is a step of the refund workflow.
type State string

const (
	StateIdle          State = "idle"
	StateListing       State = "listing"
	StateItemSelection State = "item-selection"
	StateConfirming    State = "confirming"
	StateCommitting    State = "committing"
)

// Backend is what the workflow needs from the refund service.
type Backend interface {
	Search(ctx context.Context, term string) ([]model.Transaction, error)
	Eligible(ctx context.Context, txID string) (model.Transaction, error)
	Commit(ctx context.Context, req CommitRequest) (model.Refund, error)
}

// Workflow is one operator's in-progress refund. Failed steps leave it in the
// state it was in.
type Workflow struct {
	backend Backend

	mu         sync.Mutex
	state      State
	term       string
	results    []model.Transaction
	tx         *model.Transaction
	selections []Selection
}

// Snapshot is a read-only view of a Workflow.
type Snapshot struct {
	State       State               `json:"state"`
	Term        string              `json:"term,omitempty"`
	Results     []model.Transaction `json:"results,omitempty"`
	Transaction *model.Transaction  `json:"transaction,omitempty"`
	Items       []model.RefundItem  `json:"items,omitempty"`
	Total       int64               `json:"total"`
}

// NewWorkflow returns an idle workflow.
func NewWorkflow(b Backend) *Workflow {
	return &Workflow{backend: b, state: StateIdle}
}

func invalidState(op string, s State) error {
	return model.Errorf(model.ErrInvalidState, "%s tidak dapat dilakukan pada tahap %s", op, s)
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Search lists refundable candidates. Allowed while idle or listing.
func (w *Workflow) Search(ctx context.Context, term string) ([]model.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateIdle && w.state != StateListing {
		return nil, invalidState("pencarian", w.state)
	}
	results, err := w.backend.Search(ctx, term)
	if err != nil {
		return nil, err
	}
	w.state = StateListing
	w.term = term
	w.results = results
	return results, nil
}

// SelectTransaction picks a search result for refund.
func (w *Workflow) SelectTransaction(ctx context.Context, txID string) (model.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateListing {
		return model.Transaction{}, invalidState("pemilihan transaksi", w.state)
	}
	tx, err := w.backend.Eligible(ctx, txID)
	if err != nil {
		return model.Transaction{}, err
	}
	w.tx = &tx
	w.selections = nil
	w.state = StateItemSelection
	return tx, nil
}

// SelectItem adds a line to the refund, or replaces its quantity and reason
// when already selected.
func (w *Workflow) SelectItem(sel Selection) (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateItemSelection {
		return Snapshot{}, invalidState("pemilihan item", w.state)
	}
	next := make([]Selection, 0, len(w.selections)+1)
	replaced := false
	for _, cur := range w.selections {
		if cur.ProductID == sel.ProductID {
			next = append(next, sel)
			replaced = true
			continue
		}
		next = append(next, cur)
	}
	if !replaced {
		next = append(next, sel)
	}
	if _, _, err := BuildItems(*w.tx, next); err != nil {
		return Snapshot{}, err
	}
	w.selections = next
	return w.snapshotLocked(), nil
}

// DeselectItem drops a line from the refund. Unknown lines are ignored.
func (w *Workflow) DeselectItem(productID int64) (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateItemSelection {
		return Snapshot{}, invalidState("pembatalan item", w.state)
	}
	for i, cur := range w.selections {
		if cur.ProductID == productID {
			w.selections = append(w.selections[:i:i], w.selections[i+1:]...)
			break
		}
	}
	return w.snapshotLocked(), nil
}

// Confirm moves to the confirmation step. At least one line must be selected.
func (w *Workflow) Confirm() (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateItemSelection {
		return Snapshot{}, invalidState("konfirmasi", w.state)
	}
	if len(w.selections) == 0 {
		return Snapshot{}, model.NewError(model.ErrValidation, "pilih minimal satu item untuk di-refund")
	}
	w.state = StateConfirming
	return w.snapshotLocked(), nil
}

// Back steps from confirming to item selection, or from item selection to the
// result list.
func (w *Workflow) Back() (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case StateConfirming:
		w.state = StateItemSelection
	case StateItemSelection:
		w.state = StateListing
		w.tx = nil
		w.selections = nil
	default:
		return Snapshot{}, invalidState("kembali", w.state)
	}
	return w.snapshotLocked(), nil
}

// Process commits the confirmed refund and resets the workflow. On failure
// the workflow returns to confirming.
func (w *Workflow) Process(ctx context.Context, operator string) (model.Refund, error) {
	w.mu.Lock()
	if w.state != StateConfirming {
		st := w.state
		w.mu.Unlock()
		return model.Refund{}, invalidState("proses refund", st)
	}
	req := CommitRequest{
		TransactionID: w.tx.ID,
		Items:         append([]Selection(nil), w.selections...),
		Operator:      operator,
	}
	w.state = StateCommitting
	w.mu.Unlock()

	rf, err := w.backend.Commit(ctx, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.state = StateConfirming
		return model.Refund{}, err
	}
	w.reset()
	return rf, nil
}

// Cancel discards the session. It cannot interrupt a commit in flight.
func (w *Workflow) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateCommitting {
		return invalidState("pembatalan", w.state)
	}
	w.reset()
	return nil
}

// Snapshot returns the current view.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workflow) snapshotLocked() Snapshot {
	snap := Snapshot{State: w.state, Term: w.term}
	if w.state == StateIdle {
		return snap
	}
	snap.Results = append([]model.Transaction(nil), w.results...)
	if w.tx != nil {
		tx := *w.tx
		snap.Transaction = &tx
		if items, total, err := BuildItems(tx, w.selections); err == nil {
			snap.Items = items
			snap.Total = total
		}
	}
	return snap
}

func (w *Workflow) reset() {
	w.state = StateIdle
	w.term = ""
	w.results = nil
	w.tx = nil
	w.selections = nil
}
