// Package web holds the embedded HTML templates and their helper functions.
package web

import (
	"embed"
	"html/template"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses every page. Pages are addressed by file name, e.g. "index.html".
func Templates() (*template.Template, error) {
	return template.New("").Funcs(FuncMap()).ParseFS(templateFS, "templates/*.html")
}

func FuncMap() template.FuncMap {
	return template.FuncMap{
		"usd": USD,
	}
}

// USD formats an amount as US dollars, e.g. "$1,234.56"
func USD(amount decimal.Decimal) string {
	cur := money.GetCurrency(money.USD)
	minor := amount.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction)).IntPart()
	return money.New(minor, money.USD).Display()
}
