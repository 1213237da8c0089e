// Package posts owns the blog post collection: the data model, slug
// derivation and the repository that reads and rewrites the single JSON
// document holding every post.
package posts

import (
	"fmt"
	"strings"
	"time"
)

// Section is a sub-block of a post.
type Section struct {
	ID          int    `json:"id"`
	Picture     string `json:"picture,omitempty"`
	SubHeading  string `json:"subHeading,omitempty"`
	SectionText string `json:"sectionText,omitempty"`
}

// Post is one blog entry as stored in the collection document.
type Post struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	IntroText   string    `json:"introText"`
	HeaderImage string    `json:"headerImage,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Sections    []Section `json:"sections"`
}

// Draft is a post that has not been saved yet.
type Draft struct {
	Title       string
	IntroText   string
	HeaderImage string
	Sections    []Section
}

// Validate checks the required fields of d.
func (d Draft) Validate() error {
	var missing []string
	if strings.TrimSpace(d.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(d.IntroText) == "" {
		missing = append(missing, "intro text")
	}
	if len(missing) > 0 {
		return wrap(KindInvalid, "validate", "", fmt.Errorf("%s required", strings.Join(missing, " and ")))
	}
	return nil
}

// Asset is an image to upload next to the collection document.
type Asset struct {
	Name        string
	Body        []byte
	ContentType string
}

// Snapshot is a fetched collection together with the storage revision it
// was read from.
type Snapshot struct {
	Posts   []Post
	Version string
}

// validateCollection checks the invariants of a decoded document.
func validateCollection(posts []Post) error {
	seen := make(map[int]struct{}, len(posts))
	for i, p := range posts {
		if p.ID <= 0 {
			return fmt.Errorf("post %d: id must be positive, got %d", i, p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("post %d: duplicate id %d", i, p.ID)
		}
		seen[p.ID] = struct{}{}
		if strings.TrimSpace(p.Title) == "" {
			return fmt.Errorf("post %d: title is empty", p.ID)
		}
		sections := make(map[int]struct{}, len(p.Sections))
		for _, s := range p.Sections {
			if s.ID <= 0 {
				return fmt.Errorf("post %d: section id must be positive, got %d", p.ID, s.ID)
			}
			if _, dup := sections[s.ID]; dup {
				return fmt.Errorf("post %d: duplicate section id %d", p.ID, s.ID)
			}
			sections[s.ID] = struct{}{}
		}
	}
	return nil
}

// nextID returns max(existing ids)+1, or 1 for an empty collection.
func nextID(posts []Post) int {
	max := 0
	for _, p := range posts {
		if p.ID > max {
			max = p.ID
		}
	}
	return max + 1
}

// numberSections gives every section without an id the next free id,
// keeping ids that are already set and unique.
func numberSections(sections []Section) []Section {
	out := make([]Section, len(sections))
	copy(out, sections)
	used := make(map[int]struct{}, len(out))
	max := 0
	for _, s := range out {
		if s.ID > 0 {
			if _, dup := used[s.ID]; !dup {
				used[s.ID] = struct{}{}
				if s.ID > max {
					max = s.ID
				}
			}
		}
	}
	claimed := make(map[int]struct{}, len(out))
	for i := range out {
		id := out[i].ID
		if _, ok := used[id]; ok {
			if _, taken := claimed[id]; !taken {
				claimed[id] = struct{}{}
				continue
			}
		}
		max++
		out[i].ID = max
		claimed[max] = struct{}{}
	}
	return out
}

// FilterByTitle returns the posts whose title contains q, ignoring case.
// An empty q returns posts unchanged.
func FilterByTitle(posts []Post, q string) []Post {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return posts
	}
	var out []Post
	for _, p := range posts {
		if strings.Contains(strings.ToLower(p.Title), q) {
			out = append(out, p)
		}
	}
	return out
}

// Find returns the post with id.
func Find(posts []Post, id int) (Post, bool) {
	for _, p := range posts {
		if p.ID == id {
			return p, true
		}
	}
	return Post{}, false
}
