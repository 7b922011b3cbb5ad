package common

import "context"

type ctxKey string

const (
	operatorKey     ctxKey = "auth/operator"
	operatorSlotKey ctxKey = "auth/operator-slot"
)

// Operator identifies the signed-in cashier. Name is what records capture as
// processedBy.
type Operator struct {
	ID   string
	Name string
}

// WithOperatorSlot returns a context carrying an empty slot that a later
// WithOperator call fills. Outer middleware (request logging) reads the slot
// after the inner auth middleware has run.
func WithOperatorSlot(ctx context.Context) (context.Context, *Operator) {
	slot := &Operator{}
	return context.WithValue(ctx, operatorSlotKey, slot), slot
}

// WithOperator stores the authenticated operator on the provided context.
func WithOperator(ctx context.Context, op Operator) context.Context {
	if slot, ok := ctx.Value(operatorSlotKey).(*Operator); ok && slot != nil {
		*slot = op
	}
	return context.WithValue(ctx, operatorKey, op)
}

// OperatorFrom extracts the authenticated operator from the context if present.
func OperatorFrom(ctx context.Context) (Operator, bool) {
	op, ok := ctx.Value(operatorKey).(Operator)
	if !ok || op.ID == "" {
		return Operator{}, false
	}
	return op, true
}

// UserID returns the authenticated operator identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	op, ok := OperatorFrom(ctx)
	return op.ID, ok
}
