// ABOUTME: Page layout for the HTML views of the admin surface.
// ABOUTME: A single inline template wraps renderer output.

package admin

import (
	"html/template"
	"io"
)

const layoutHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} - vault</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #1f2937; }
table.resource-list { border-collapse: collapse; min-width: 40rem; }
table.resource-list th, table.resource-list td { border-bottom: 1px solid #e5e7eb; padding: .5rem 1rem; text-align: left; }
table.resource-list td.number { text-align: right; font-variant-numeric: tabular-nums; }
td.empty { color: #9ca3af; }
nav a { margin-right: 1rem; }
</style>
</head>
<body>
<nav>
<a href="/admin/plugins">Plugins</a>
<a href="/admin/providers">Providers</a>
<a href="/admin/bindings">Bindings</a>
<a href="/admin/events">Events</a>
</nav>
<h1>{{.Title}}</h1>
{{if .Subtitle}}<p>{{.Subtitle}}</p>{{end}}
{{.Body}}
{{if or .Prev .Next}}<p>{{if .Prev}}<a href="{{.Prev}}">Previous</a>{{end}} {{if .Next}}<a href="{{.Next}}">Next</a>{{end}}</p>{{end}}
</body>
</html>
`

var layoutTmpl = template.Must(template.New("layout").Parse(layoutHTML))

type pageData struct {
	Title    string
	Subtitle string
	Body     template.HTML
	Prev     string
	Next     string
}

func renderPage(w io.Writer, data pageData) error {
	return layoutTmpl.Execute(w, data)
}
