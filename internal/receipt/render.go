package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/backend-kasir/internal/model"
)

const width = 40

// StoreInfo is printed at the top of every receipt.
type StoreInfo struct {
	Name    string
	Address string
	Phone   string
}

// Renderer renders receipts for the configured store.
type Renderer struct {
	Store    StoreInfo
	Currency Currency
	Location *time.Location
}

func (r Renderer) date(t time.Time) string {
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("02/01/2006 15:04")
}

func center(s string) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", (width-len(s))/2) + s
}

func row(left, right string) string {
	gap := width - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func rule() string { return strings.Repeat("-", width) }

func (r Renderer) header(b *strings.Builder, title string) {
	name := r.Store.Name
	if name == "" {
		name = "POS SYSTEM"
	}
	if title != "" {
		name += " - " + title
	}
	fmt.Fprintln(b, center(name))
	for _, line := range []string{r.Store.Address, r.Store.Phone} {
		if line != "" {
			fmt.Fprintln(b, center(line))
		}
	}
	fmt.Fprintln(b, rule())
}

// Transaction renders a sale receipt.
func (r Renderer) Transaction(tx model.Transaction) string {
	var b strings.Builder
	r.header(&b, "")
	fmt.Fprintf(&b, "ID Transaksi: %s\n", tx.ID)
	fmt.Fprintf(&b, "Tanggal: %s\n", r.date(tx.Date))
	fmt.Fprintf(&b, "Kasir: %s\n", tx.ProcessedBy)
	if tx.CustomerName != "" {
		fmt.Fprintf(&b, "Pelanggan: %s\n", tx.CustomerName)
	}
	fmt.Fprintf(&b, "Metode Pembayaran: %s\n", tx.PaymentMethod.Label())
	fmt.Fprintln(&b, rule())
	for _, it := range tx.Items {
		fmt.Fprintln(&b, row(fmt.Sprintf("%s x%d", it.Name, it.Quantity), r.Currency.Format(it.Total())))
	}
	fmt.Fprintln(&b, rule())
	fmt.Fprintln(&b, row("Subtotal:", r.Currency.Format(tx.Subtotal)))
	fmt.Fprintln(&b, row("Diskon:", r.Currency.Format(tx.Discount)))
	fmt.Fprintln(&b, row(fmt.Sprintf("Pajak (%s):", percent(tx.TaxBps)), r.Currency.Format(tx.Tax)))
	fmt.Fprintln(&b, row("TOTAL:", r.Currency.Format(tx.Total)))
	fmt.Fprintln(&b, rule())
	fmt.Fprintln(&b, center("Terima kasih atas kunjungan Anda!"))
	fmt.Fprintln(&b, center("Silakan datang kembali!"))
	return b.String()
}

// Refund renders a refund receipt including the reason for each line.
func (r Renderer) Refund(rf model.Refund) string {
	var b strings.Builder
	r.header(&b, "REFUND")
	fmt.Fprintf(&b, "ID Refund: %s\n", rf.ID)
	fmt.Fprintf(&b, "ID Transaksi Asli: %s\n", rf.OriginalTransactionID)
	fmt.Fprintf(&b, "Tanggal Refund: %s\n", r.date(rf.Date))
	fmt.Fprintf(&b, "Kasir: %s\n", rf.ProcessedBy)
	fmt.Fprintf(&b, "Pelanggan: %s\n", rf.CustomerName)
	fmt.Fprintln(&b, rule())
	for _, it := range rf.Items {
		fmt.Fprintln(&b, row(fmt.Sprintf("%s x%d", it.Name, it.Quantity), r.Currency.Format(it.Amount)))
		fmt.Fprintf(&b, "  Alasan: %s\n", it.Reason.Label())
	}
	fmt.Fprintln(&b, rule())
	fmt.Fprintln(&b, row("TOTAL REFUND:", r.Currency.Format(rf.Total)))
	fmt.Fprintln(&b, rule())
	fmt.Fprintln(&b, center("Refund telah diproses."))
	return b.String()
}

func percent(bps int) string {
	if bps%100 == 0 {
		return fmt.Sprintf("%d%%", bps/100)
	}
	return fmt.Sprintf("%d.%02d%%", bps/100, bps%100)
}
