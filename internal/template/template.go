// Package template renders the HTML pages.
package template

import (
	"embed"
	"html/template"
	"io"

	"github.com/dense-analysis/coinfolio/internal/format"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.tmpl
var files embed.FS

var functions = template.FuncMap{
	"money":      format.Money,
	"price":      format.Price,
	"percentage": format.Percentage,
	"amount":     format.Amount,
	"negative": func(value decimal.Decimal) bool {
		return value.IsNegative()
	},
}

func parse(names ...string) *template.Template {
	patterns := make([]string, 0, len(names)+1)
	patterns = append(patterns, "templates/base.tmpl")

	for _, name := range names {
		patterns = append(patterns, "templates/"+name)
	}

	return template.Must(template.New("base").Funcs(functions).ParseFS(files, patterns...))
}

var Login = parse("login.tmpl")
var Portfolio = parse("portfolio.tmpl")

// Render writes a page built on the base layout.
func Render(tmpl *template.Template, writer io.Writer, data any) error {
	return tmpl.ExecuteTemplate(writer, "base", data)
}
