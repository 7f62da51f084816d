// Package money formats whole-unit currency amounts for documents and mail.
package money

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is used for all proposals and invoices.
const DefaultCurrency = "USD"

var printer = message.NewPrinter(language.English)

// Format renders amount with digit grouping, e.g. "USD 15,000". Unknown
// currency codes fall back to DefaultCurrency.
func Format(amount int64, code string) string {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		unit = currency.USD
	}
	return unit.String() + " " + printer.Sprintf("%d", amount)
}

// MinorUnits converts whole units to cents for the payment platform.
func MinorUnits(amount int64) int64 {
	return amount * 100
}
