// Package textfmt formats numbers for human-facing output.
package textfmt

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Int formats n with thousands separators.
func Int(n int) string {
	return printer.Sprintf("%d", n)
}

// Float formats v with thousands separators and the given decimals.
func Float(v float64, decimals int) string {
	return printer.Sprintf(fmt.Sprintf("%%.%df", decimals), v)
}

// Money formats v as dollars with two decimals.
func Money(v float64) string {
	return "$" + Float(v, 2)
}

// Percent formats an already-scaled percentage.
func Percent(v float64, decimals int) string {
	return printer.Sprintf(fmt.Sprintf("%%.%df%%%%", decimals), v)
}
