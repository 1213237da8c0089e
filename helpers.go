package blogadmin

import (
	"errors"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/eringen/blogadmin/identity"
	"github.com/eringen/blogadmin/objectstore"
	"github.com/eringen/blogadmin/posts"
)

// Toast texts shown to the user.
const (
	msgInvalidCredentials = "Invalid credentials"
	msgLoginFailed        = "Login Failed"
	msgTooManyAttempts    = "Too many login attempts. Try again later."
	msgAuthFailed         = "Authentication failed"
	msgUploadFailed       = "Upload failed. Please try again."
	msgConflict           = "The post list changed since it was loaded. Please try again."
	msgPostCreated        = "Post created successfully!"
	msgPostDeleted        = "Post deleted successfully!"
)

// userMessage maps an error from the write path to the toast text.
func userMessage(err error) string {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return msgInvalidCredentials
	case errors.Is(err, identity.ErrMalformedCredential):
		return msgLoginFailed
	case objectstore.IsAccessDenied(err):
		return msgAuthFailed
	case errors.Is(err, posts.ErrConflict):
		return msgConflict
	default:
		return msgUploadFailed
	}
}

// loginToast returns msg when it is one of the toasts the sign-in page
// shows, and "" for any other text.
func loginToast(msg string) string {
	switch msg {
	case msgInvalidCredentials, msgLoginFailed, msgTooManyAttempts, msgAuthFailed:
		return msg
	}
	return ""
}

// listingMessage maps an error from loading the post list to the toast
// text. The error itself is shown, as there is nothing to retry.
func listingMessage(err error) string {
	if objectstore.IsAccessDenied(err) {
		return msgAuthFailed
	}
	return err.Error()
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// withMessage returns target with msg as the toast query parameter.
func withMessage(target, msg string) string {
	if msg == "" {
		return target
	}
	return target + "?" + url.Values{"msg": {msg}}.Encode()
}

// parseID parses a positive post id from a path parameter.
func parseID(raw string) (int, bool) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// clamp limits n to [lo, hi].
func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
