package blogadmin

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/blogadmin/objectstore"
	"github.com/eringen/blogadmin/posts"
)

// Storage providers accepted in Config.StorageProvider.
const (
	ProviderS3  = "s3"
	ProviderGCS = "gcs"
)

// Config holds all configuration for a blogadmin server.
type Config struct {
	SiteName string // Shown in page titles (default "Blog Admin")
	BaseURL  string // External URL, used for the Google login_uri (default "http://localhost:3000")
	Addr     string // Listen address (default ":3000")

	StorageProvider string // "s3" (default) or "gcs"
	BucketName      string // Required
	FileKey         string // Required: object key of the post list document
	Region          string // Required for s3
	AccessKeyID     string // Required for s3
	SecretAccessKey string // Required for s3
	StorageEndpoint string // Optional S3 compatible or GCS endpoint
	StorageTimeout  time.Duration

	// Consistency is "last-writer-wins" (default) or "optimistic".
	Consistency string

	GoogleClientID string
	AllowedEmail   string // Required
	AllowedName    string // Required

	SessionSecret string // Required: cookie signing secret
	CookieSecure  bool   // Set true behind HTTPS

	LoginAttempts int           // Failed logins allowed per LoginWindow (default 5)
	LoginWindow   time.Duration // default 1min
}

func (c *Config) setDefaults() {
	if c.SiteName == "" {
		c.SiteName = "Blog Admin"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.StorageProvider == "" {
		c.StorageProvider = ProviderS3
	}
	if c.StorageTimeout == 0 {
		c.StorageTimeout = 30 * time.Second
	}
	if c.Consistency == "" {
		c.Consistency = "last-writer-wins"
	}
	if c.LoginAttempts == 0 {
		c.LoginAttempts = 5
	}
	if c.LoginWindow == 0 {
		c.LoginWindow = time.Minute
	}
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var missing []string
	require := func(key, val string) {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	require("bucket_name", c.BucketName)
	require("file_key", c.FileKey)
	require("allowed_email", c.AllowedEmail)
	require("allowed_name", c.AllowedName)
	require("session_secret", c.SessionSecret)

	switch c.StorageProvider {
	case ProviderS3:
		require("region", c.Region)
		require("access_key_id", c.AccessKeyID)
		require("secret_access_key", c.SecretAccessKey)
	case ProviderGCS:
	default:
		return fmt.Errorf("blogadmin: unknown storage_provider %q", c.StorageProvider)
	}
	if len(missing) > 0 {
		return fmt.Errorf("blogadmin: missing required config: %s", strings.Join(missing, ", "))
	}
	if _, err := posts.ParseConsistency(c.Consistency); err != nil {
		return fmt.Errorf("blogadmin: %w", err)
	}
	if c.StorageTimeout < 0 {
		return fmt.Errorf("blogadmin: storage_timeout must be positive")
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithLogger sets the logger. The default is zap.NewNop.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithStore replaces the object store built from the configuration.
func WithStore(s objectstore.Client) Option {
	return func(a *App) {
		a.store = s
	}
}

// WithClock sets the clock used for post timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
