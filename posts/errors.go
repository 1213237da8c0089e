package posts

import (
	"errors"
	"strings"
)

// Kind classifies repository errors.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindMalformed
	KindTransport
	KindConflict
	KindInvalid
	KindUpload
)

// Sentinels matching each Kind, usable with errors.Is.
var (
	ErrNotFound     = errors.New("post list not found")
	ErrMalformed    = errors.New("post list is malformed")
	ErrTransport    = errors.New("object storage request failed")
	ErrConflict     = errors.New("the post list changed since it was loaded")
	ErrInvalidDraft = errors.New("invalid post")
	ErrUpload       = errors.New("image upload failed")
)

// Error wraps an underlying error with the operation and object key.
type Error struct {
	Kind Kind
	Op   string
	Key  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := kindString(e.Kind)
	if e.Op != "" {
		base = e.Op + ": " + base
	}
	if e.Key != "" {
		base += " " + e.Key
	}
	if e.Err != nil {
		return base + ": " + e.Err.Error()
	}
	return base
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of e's Kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == sentinel(e.Kind)
}

func sentinel(kind Kind) error {
	switch kind {
	case KindNotFound:
		return ErrNotFound
	case KindMalformed:
		return ErrMalformed
	case KindTransport:
		return ErrTransport
	case KindConflict:
		return ErrConflict
	case KindInvalid:
		return ErrInvalidDraft
	case KindUpload:
		return ErrUpload
	default:
		return nil
	}
}

func kindString(kind Kind) string {
	switch kind {
	case KindNotFound:
		return "not found"
	case KindMalformed:
		return "malformed document"
	case KindTransport:
		return "transport error"
	case KindConflict:
		return "conflict"
	case KindInvalid:
		return "invalid"
	case KindUpload:
		return "upload failed"
	default:
		return "internal error"
	}
}

func wrap(kind Kind, op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Key: key, Err: err}
}

// KindOf extracts the Kind from err, walking wrapped errors as needed.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UploadError reports a partially applied UploadAssets call. Assets in
// Stored remain in the bucket; nothing after Failed was attempted.
type UploadError struct {
	Failed string
	Stored []string
	Err    error
}

func (e *UploadError) Error() string {
	msg := "upload " + e.Failed
	if len(e.Stored) > 0 {
		msg += " (already stored: " + strings.Join(e.Stored, ", ") + ")"
	}
	return msg + ": " + e.Err.Error()
}

func (e *UploadError) Unwrap() error { return e.Err }
