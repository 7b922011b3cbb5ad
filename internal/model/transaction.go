package model

import (
	"strings"
	"time"
)

// PaymentMethod identifies how a sale was settled.
type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "cash"
	PaymentCard    PaymentMethod = "card"
	PaymentQRIS    PaymentMethod = "qris"
	PaymentEWallet PaymentMethod = "ewallet"
	PaymentSplit   PaymentMethod = "split"
	PaymentCredit  PaymentMethod = "credit"
)

var paymentLabels = map[PaymentMethod]string{
	PaymentCash:    "Tunai",
	PaymentCard:    "Kartu",
	PaymentQRIS:    "QRIS",
	PaymentEWallet: "E-Wallet",
	PaymentSplit:   "Split Payment",
	PaymentCredit:  "Store Credit",
}

// PaymentMethods lists the supported methods in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentCash, PaymentCard, PaymentQRIS, PaymentEWallet, PaymentSplit, PaymentCredit}
}

// ParsePaymentMethod normalises raw input. The empty string is returned for
// unknown values.
func ParsePaymentMethod(raw string) PaymentMethod {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := paymentLabels[m]; ok {
		return m
	}
	return ""
}

// Valid reports whether m is a supported method.
func (m PaymentMethod) Valid() bool {
	_, ok := paymentLabels[m]
	return ok
}

// Label returns the display label for m.
func (m PaymentMethod) Label() string {
	if l, ok := paymentLabels[m]; ok {
		return l
	}
	return string(m)
}

// TransactionStatus is the lifecycle status of a sale record.
type TransactionStatus string

const TransactionCompleted TransactionStatus = "completed"

// LineItem is a (product, quantity, snapshotted unit price) tuple.
type LineItem struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Category  string `json:"category"`
}

// Total returns UnitPrice * Quantity.
func (l LineItem) Total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Transaction is an immutable sale record.
type Transaction struct {
	ID            string            `json:"id"`
	Date          time.Time         `json:"date"`
	Items         []LineItem        `json:"items"`
	Subtotal      int64             `json:"subtotal"`
	Discount      int64             `json:"discount"`
	Tax           int64             `json:"tax"`
	Total         int64             `json:"total"`
	DiscountBps   int               `json:"discountBps"`
	TaxBps        int               `json:"taxBps"`
	PaymentMethod PaymentMethod     `json:"paymentMethod"`
	Status        TransactionStatus `json:"status"`
	ProcessedBy   string            `json:"processedBy"`
	CustomerName  string            `json:"customerName,omitempty"`
	CustomerEmail string            `json:"customerEmail,omitempty"`
}

// Item returns the line for productID.
func (t Transaction) Item(productID int64) (LineItem, bool) {
	for _, it := range t.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return LineItem{}, false
}

// Matches reports whether term occurs (case-insensitively) in the id, any
// item name or the customer name.
func (t Transaction) Matches(term string) bool {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return false
	}
	if strings.Contains(strings.ToLower(t.ID), needle) {
		return true
	}
	for _, it := range t.Items {
		if strings.Contains(strings.ToLower(it.Name), needle) {
			return true
		}
	}
	return t.CustomerName != "" && strings.Contains(strings.ToLower(t.CustomerName), needle)
}
