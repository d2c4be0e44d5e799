package report

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Korean)

// KRW formats a won amount with digit grouping, e.g. "₩1,250,000".
func KRW(d decimal.Decimal) string {
	n := d.Round(0).IntPart()
	if n < 0 {
		return printer.Sprintf("-₩%d", -n)
	}
	return printer.Sprintf("₩%d", n)
}
