package views

import (
	"bytes"
	"html/template"
	"time"

	"github.com/eringen/blogadmin/markdown"
)

var funcs = template.FuncMap{
	"markdown":   renderMarkdown,
	"safeURL":    markdown.SafeURL,
	"formatDate": FormatDate,
	"inc":        func(i int) int { return i + 1 },
	"fieldError": func(errs map[string]string, field string) string { return errs[field] },
}

// renderMarkdown returns post text as trusted HTML. goldmark drops raw HTML
// from the source, so the output is safe to embed.
func renderMarkdown(content string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.RenderMarkdown(&buf, content); err != nil {
		return template.HTML(template.HTMLEscapeString(content))
	}
	return template.HTML(buf.String())
}

// FormatDate renders a creation timestamp for the post table.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2 Jan 2006, 15:04")
}
