// Package views contains the default pages of blogadmin. Each page is a
// templ.Component so callers can swap any of them for their own.
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/templ"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = map[string]*template.Template{}

func init() {
	base := template.Must(template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html"))
	for _, name := range []string{"login.html", "dashboard.html", "post.html", "new_post.html", "confirm_delete.html", "error.html"} {
		clone := template.Must(base.Clone())
		pages[name] = template.Must(clone.ParseFS(templateFS, "templates/"+name))
	}
}

// page returns a component executing the layout with the named page's blocks.
func page(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t, ok := pages[name]
		if !ok {
			return fmt.Errorf("views: unknown page %q", name)
		}
		return t.ExecuteTemplate(w, "layout.html", data)
	})
}

// Login renders the sign-in screen with the Google button.
func Login(p LoginPage) templ.Component { return page("login.html", p) }

// Dashboard renders the post table.
func Dashboard(p DashboardPage) templ.Component { return page("dashboard.html", p) }

// Post renders a single post.
func Post(p PostPage) templ.Component { return page("post.html", p) }

// NewPost renders the creation form.
func NewPost(p NewPostPage) templ.Component { return page("new_post.html", p) }

// ConfirmDelete renders the "Are you sure?" step.
func ConfirmDelete(p ConfirmDeletePage) templ.Component { return page("confirm_delete.html", p) }

// NotFound renders the 404 page.
func NotFound(site SiteConfig) templ.Component {
	return page("error.html", ErrorPage{Site: site, Status: 404, Message: "Page not found."})
}

// ServerError renders the 500 page.
func ServerError(site SiteConfig) templ.Component {
	return page("error.html", ErrorPage{Site: site, Status: 500, Message: "Something went wrong. Please try again."})
}
