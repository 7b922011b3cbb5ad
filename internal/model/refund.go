package model

import (
	"strings"
	"time"
)

// RefundReason is the operator-selected cause for refunding a line.
type RefundReason string

const (
	ReasonCustomerRequest RefundReason = "customer-request"
	ReasonDamaged         RefundReason = "damaged"
	ReasonDefective       RefundReason = "defective"
	ReasonWrongItem       RefundReason = "wrong-item"
	ReasonExpired         RefundReason = "expired"
	ReasonOther           RefundReason = "other"
)

var reasonLabels = map[RefundReason]string{
	ReasonCustomerRequest: "Permintaan Pelanggan",
	ReasonDamaged:         "Barang Rusak",
	ReasonDefective:       "Barang Cacat",
	ReasonWrongItem:       "Barang Salah",
	ReasonExpired:         "Barang Kedaluwarsa",
	ReasonOther:           "Lainnya",
}

// RefundReasons lists the reasons in display order.
func RefundReasons() []RefundReason {
	return []RefundReason{ReasonCustomerRequest, ReasonDamaged, ReasonDefective, ReasonWrongItem, ReasonExpired, ReasonOther}
}

// ParseRefundReason normalises raw input; unknown values yield "".
func ParseRefundReason(raw string) RefundReason {
	r := RefundReason(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := reasonLabels[r]; ok {
		return r
	}
	return ""
}

// Valid reports whether r is a known reason.
func (r RefundReason) Valid() bool {
	_, ok := reasonLabels[r]
	return ok
}

// Label returns the display label for r.
func (r RefundReason) Label() string {
	if l, ok := reasonLabels[r]; ok {
		return l
	}
	return string(r)
}

// RefundStatus is the lifecycle status of a refund record.
type RefundStatus string

const RefundCompleted RefundStatus = "completed"

// WalkInCustomer is recorded when the original sale has no customer name.
const WalkInCustomer = "Walk-in Customer"

// RefundItem is a refunded line with its reason. Amount is UnitPrice*Quantity.
type RefundItem struct {
	LineItem
	Reason RefundReason `json:"reason"`
	Amount int64        `json:"refundAmount"`
}

// Refund is an immutable record reversing part of one transaction.
type Refund struct {
	ID                    string       `json:"id"`
	OriginalTransactionID string       `json:"originalTransactionId"`
	Date                  time.Time    `json:"date"`
	Items                 []RefundItem `json:"items"`
	Total                 int64        `json:"total"`
	Status                RefundStatus `json:"status"`
	ProcessedBy           string       `json:"processedBy"`
	CustomerName          string       `json:"customerName"`
}
