package posts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/eringen/blogadmin/objectstore"
)

// ImagePrefix is the key prefix under which uploaded images are stored.
const ImagePrefix = "images/"

// Consistency selects how CreatePost and DeletePost write the document.
type Consistency int

const (
	// LastWriterWins overwrites the document blindly. Two concurrent
	// fetch-modify-write cycles silently lose the first writer's change.
	LastWriterWins Consistency = iota
	// Optimistic rejects a write with ErrConflict when the stored document
	// changed since it was fetched. The check is a Stat followed by a Put,
	// so a writer landing between the two is still not detected.
	Optimistic
)

// ParseConsistency maps a configuration value to a Consistency.
func ParseConsistency(s string) (Consistency, error) {
	switch s {
	case "", "last-writer-wins":
		return LastWriterWins, nil
	case "optimistic":
		return Optimistic, nil
	default:
		return 0, fmt.Errorf("posts: unknown consistency %q", s)
	}
}

// Repository mediates every read and write of the post collection.
type Repository struct {
	store       objectstore.Client
	key         string
	consistency Consistency
	now         func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithConsistency sets the write policy used by CreatePost and DeletePost.
func WithConsistency(c Consistency) Option {
	return func(r *Repository) {
		r.consistency = c
	}
}

// WithClock overrides the clock used to stamp CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// NewRepository returns a Repository storing the collection at key.
func NewRepository(store objectstore.Client, key string, opts ...Option) *Repository {
	r := &Repository{
		store: store,
		key:   key,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListPosts fetches and decodes the collection. Every call re-fetches.
func (r *Repository) ListPosts(ctx context.Context) ([]Post, error) {
	snap, err := r.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Posts, nil
}

// Fetch is ListPosts that also reports the storage revision.
func (r *Repository) Fetch(ctx context.Context) (Snapshot, error) {
	obj, err := r.store.Get(ctx, r.key)
	if err != nil {
		if objectstore.IsNotFound(err) {
			return Snapshot{}, wrap(KindNotFound, "list", r.key, err)
		}
		return Snapshot{}, wrap(KindTransport, "list", r.key, err)
	}
	posts, err := decode(obj.Body)
	if err != nil {
		return Snapshot{}, wrap(KindMalformed, "list", r.key, err)
	}
	return Snapshot{Posts: posts, Version: obj.ETag}, nil
}

// ReplaceAll overwrites the whole document with posts.
func (r *Repository) ReplaceAll(ctx context.Context, posts []Post) error {
	_, err := r.write(ctx, posts)
	return err
}

// ReplaceIfUnchanged overwrites the document only if its stored revision is
// still version. An empty version means the document must not exist yet.
func (r *Repository) ReplaceIfUnchanged(ctx context.Context, posts []Post, version string) error {
	current, err := r.store.Stat(ctx, r.key)
	switch {
	case objectstore.IsNotFound(err):
		current = ""
	case err != nil:
		return wrap(KindTransport, "replace", r.key, err)
	}
	if current != version {
		return wrap(KindConflict, "replace", r.key, fmt.Errorf("stored revision %q, loaded %q", current, version))
	}
	_, err = r.write(ctx, posts)
	return err
}

func (r *Repository) write(ctx context.Context, posts []Post) (string, error) {
	body, err := encode(posts)
	if err != nil {
		return "", wrap(KindInternal, "replace", r.key, err)
	}
	etag, err := r.store.Put(ctx, r.key, body, "application/json")
	if err != nil {
		return "", wrap(KindTransport, "replace", r.key, err)
	}
	return etag, nil
}

// UploadAssets stores every asset under ImagePrefix, one after the other.
// It stops at the first failure; assets stored before it stay in the bucket
// and are listed in the returned *UploadError.
func (r *Repository) UploadAssets(ctx context.Context, assets []Asset) error {
	stored := make([]string, 0, len(assets))
	for _, a := range assets {
		key := ImageKey(a.Name)
		if a.Name == "" {
			return wrap(KindUpload, "upload", key, &UploadError{Failed: a.Name, Stored: stored, Err: fmt.Errorf("asset name is empty")})
		}
		if _, err := r.store.Put(ctx, key, a.Body, a.ContentType); err != nil {
			return wrap(KindUpload, "upload", key, &UploadError{Failed: a.Name, Stored: stored, Err: err})
		}
		stored = append(stored, a.Name)
	}
	return nil
}

// CreatePost uploads assets, then appends a new post built from draft.
// When the upload fails nothing is read or written. A missing document is
// treated as an empty collection.
func (r *Repository) CreatePost(ctx context.Context, draft Draft, assets []Asset) (Post, error) {
	if err := draft.Validate(); err != nil {
		return Post{}, err
	}
	if err := r.UploadAssets(ctx, assets); err != nil {
		return Post{}, err
	}
	snap, err := r.Fetch(ctx)
	if err != nil && KindOf(err) != KindNotFound {
		return Post{}, err
	}
	post := Post{
		ID:          nextID(snap.Posts),
		Title:       draft.Title,
		Slug:        MakeSlug(draft.Title),
		IntroText:   draft.IntroText,
		HeaderImage: draft.HeaderImage,
		CreatedAt:   r.now().UTC(),
		Sections:    numberSections(draft.Sections),
	}
	updated := make([]Post, 0, len(snap.Posts)+1)
	updated = append(updated, snap.Posts...)
	updated = append(updated, post)
	if err := r.commit(ctx, updated, snap.Version); err != nil {
		return Post{}, err
	}
	return post, nil
}

// DeletePost removes the post with id. A missing id is not an error; the
// document is rewritten unchanged.
func (r *Repository) DeletePost(ctx context.Context, id int) error {
	snap, err := r.Fetch(ctx)
	if err != nil {
		return err
	}
	updated := make([]Post, 0, len(snap.Posts))
	for _, p := range snap.Posts {
		if p.ID != id {
			updated = append(updated, p)
		}
	}
	return r.commit(ctx, updated, snap.Version)
}

func (r *Repository) commit(ctx context.Context, posts []Post, version string) error {
	if r.consistency == Optimistic {
		return r.ReplaceIfUnchanged(ctx, posts, version)
	}
	return r.ReplaceAll(ctx, posts)
}

// ImageKey returns the object key of an uploaded image.
func ImageKey(name string) string {
	return ImagePrefix + path.Base("/"+name)
}

// ImageURL returns the public URL of the uploaded image name.
func (r *Repository) ImageURL(name string) string {
	return r.store.URL(ImageKey(name))
}

func decode(body []byte) ([]Post, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	var posts []Post
	if err := dec.Decode(&posts); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after the post list")
	}
	if posts == nil {
		posts = []Post{}
	}
	for i := range posts {
		if posts[i].Sections == nil {
			posts[i].Sections = []Section{}
		}
	}
	if err := validateCollection(posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func encode(posts []Post) ([]byte, error) {
	if posts == nil {
		posts = []Post{}
	}
	return json.MarshalIndent(posts, "", "  ")
}
