package model

import (
	"fmt"
	"time"
)

const (
	TransactionIDPrefix = "TXN"
	RefundIDPrefix      = "REF"
)

// NewRecordID derives an id from the millisecond clock: prefix followed by
// the last eight digits. attempt shifts the value so a collision can be
// retried with a fresh candidate.
func NewRecordID(prefix string, now time.Time, attempt int) string {
	ms := now.UnixMilli() + int64(attempt)
	return fmt.Sprintf("%s%08d", prefix, ms%100_000_000)
}
