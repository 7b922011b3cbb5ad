package receipt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/receipt"
)

func renderer() receipt.Renderer {
	return receipt.Renderer{
		Store:    receipt.StoreInfo{Name: "POS SYSTEM", Address: "123 Business Street", Phone: "(021) 123-4567"},
		Currency: receipt.NewCurrency("IDR", 0, language.Indonesian),
		Location: time.UTC,
	}
}

func TestCurrencyFormat(t *testing.T) {
	idr := receipt.NewCurrency("idr", 0, language.Indonesian)
	require.Equal(t, "Rp 82.500", idr.Format(82500))
	require.Equal(t, "Rp 0", idr.Format(0))
	require.Equal(t, "-Rp 1.000", idr.Format(-1000))

	usd := receipt.NewCurrency("USD", 2, language.AmericanEnglish)
	require.Equal(t, "$ 1,234.50", usd.Format(123450))
}

func TestTransactionReceipt(t *testing.T) {
	tx := model.Transaction{
		ID:            "TXN00123456",
		Date:          time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		Items:         []model.LineItem{{ProductID: 1, Name: "Coffee Latte", UnitPrice: 25000, Quantity: 3}},
		Subtotal:      75000,
		Tax:           7500,
		Total:         82500,
		TaxBps:        1000,
		PaymentMethod: model.PaymentCash,
		ProcessedBy:   "Siti",
	}
	out := renderer().Transaction(tx)
	require.Contains(t, out, "ID Transaksi: TXN00123456")
	require.Contains(t, out, "Tanggal: 01/05/2024 09:30")
	require.Contains(t, out, "Metode Pembayaran: Tunai")
	require.Contains(t, out, "Coffee Latte x3")
	require.Contains(t, out, "Pajak (10%):")
	require.Contains(t, out, "Rp 82.500")
	require.NotContains(t, out, "Pelanggan:")
}

func TestRefundReceipt(t *testing.T) {
	rf := model.Refund{
		ID:                    "REF00123456",
		OriginalTransactionID: "TXN00123456",
		Date:                  time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
		Items: []model.RefundItem{{
			LineItem: model.LineItem{ProductID: 1, Name: "Coffee Latte", UnitPrice: 25000, Quantity: 2},
			Reason:   model.ReasonDamaged,
			Amount:   50000,
		}},
		Total:        50000,
		ProcessedBy:  "Siti",
		CustomerName: model.WalkInCustomer,
	}
	out := renderer().Refund(rf)
	require.Contains(t, out, "POS SYSTEM - REFUND")
	require.Contains(t, out, "Alasan: Barang Rusak")
	require.Contains(t, out, "Pelanggan: Walk-in Customer")
	require.Contains(t, out, "Rp 50.000")
}
