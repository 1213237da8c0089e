package views

import (
	"github.com/eringen/blogadmin/identity"
	"github.com/eringen/blogadmin/posts"
)

// SiteConfig holds site-wide settings every page needs.
type SiteConfig struct {
	Name           string // shown in the header and <title>
	GoogleClientID string // Google Identity Services client id
	LoginURI       string // absolute URL Google posts the credential to
}

// LoginPage is the sign-in screen.
type LoginPage struct {
	Site    SiteConfig
	Message string
}

// DashboardPage is the post list.
type DashboardPage struct {
	Site    SiteConfig
	User    identity.Session
	Posts   []posts.Post // after filtering
	Total   int          // before filtering
	Query   string
	Message string
	CSRF    string
}

// PostPage is the detail view of one post.
type PostPage struct {
	Site SiteConfig
	User identity.Session
	Post posts.Post
	CSRF string
}

// SectionField is one section block of the creation form.
type SectionField struct {
	Index       int
	SubHeading  string
	SectionText string
}

// NewPostPage is the creation form. Values are echoed back when the form is
// re-rendered after a validation error or a section change.
type NewPostPage struct {
	Site      SiteConfig
	User      identity.Session
	Title     string
	IntroText string
	Sections  []SectionField
	Errors    map[string]string
	Message   string
	CSRF      string
}

// ConfirmDeletePage asks before a post is deleted.
type ConfirmDeletePage struct {
	Site SiteConfig
	User identity.Session
	Post posts.Post
	CSRF string
}

// ErrorPage is rendered for 404 and 5xx responses.
type ErrorPage struct {
	Site    SiteConfig
	Status  int
	Message string
}
