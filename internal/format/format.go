// Package format renders KPI values for display. The dashboard copy is
// French, so numbers follow the fr-FR locale: space-grouped thousands and a
// comma decimal separator.
package format

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.French)

// Currency renders a monetary magnitude as a grouped integer with a euro
// sign, e.g. 1000000 -> "1 000 000 €".
func Currency(v float64) string {
	return printer.Sprintf("%.0f", v) + " €"
}

// Percent renders a percentage-scale value with one decimal,
// e.g. 15 -> "15,0 %".
func Percent(v float64) string {
	return printer.Sprintf("%.1f", v) + " %"
}

// HumanizeRole turns a detected-column role key into display text by
// replacing underscores with spaces, e.g. "resultat_net" -> "resultat net".
func HumanizeRole(role string) string {
	return strings.ReplaceAll(role, "_", " ")
}
