// Package receipt renders plain-text sale and refund receipts.
package receipt

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Currency formats minor-unit amounts for display.
type Currency struct {
	Code           string
	FractionDigits int
	printer        *message.Printer
}

// NewCurrency returns a formatter that groups digits the way tag does.
func NewCurrency(code string, fractionDigits int, tag language.Tag) Currency {
	if fractionDigits < 0 {
		fractionDigits = 0
	}
	return Currency{
		Code:           strings.ToUpper(strings.TrimSpace(code)),
		FractionDigits: fractionDigits,
		printer:        message.NewPrinter(tag),
	}
}

// Symbol returns the display symbol for the currency code.
func (c Currency) Symbol() string {
	switch c.Code {
	case "IDR", "":
		return "Rp"
	case "USD":
		return "$"
	default:
		return c.Code
	}
}

// Format renders amount (in minor units) with the currency symbol, e.g.
// "Rp 82.500".
func (c Currency) Format(amount int64) string {
	p := c.printer
	if p == nil {
		p = message.NewPrinter(language.Indonesian)
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	var digits string
	if c.FractionDigits == 0 {
		digits = p.Sprint(number.Decimal(amount))
	} else {
		v := float64(amount) / math.Pow10(c.FractionDigits)
		digits = p.Sprint(number.Decimal(v, number.Scale(c.FractionDigits)))
	}
	return sign + c.Symbol() + " " + digits
}
