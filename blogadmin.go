// Package blogadmin is a single-operator blog administration server built
// with Go, Echo, and templ. It lists, creates, and deletes blog posts that
// live as one JSON document in an object storage bucket.
//
// Users can replace any page through the ViewFuncs struct; blogadmin handles
// the handler logic, middleware, sessions, and storage.
package blogadmin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/eringen/blogadmin/identity"
	"github.com/eringen/blogadmin/objectstore"
	"github.com/eringen/blogadmin/posts"
	"github.com/eringen/blogadmin/session"
	"github.com/eringen/blogadmin/views"
)

// ViewFuncs holds the templ components blogadmin calls when rendering
// pages. Nil fields fall back to the components in package views.
type ViewFuncs struct {
	Login         func(p views.LoginPage) templ.Component
	Dashboard     func(p views.DashboardPage) templ.Component
	Post          func(p views.PostPage) templ.Component
	NewPost       func(p views.NewPostPage) templ.Component
	ConfirmDelete func(p views.ConfirmDeletePage) templ.Component
	NotFound      func(site views.SiteConfig) templ.Component
	ServerError   func(site views.SiteConfig) templ.Component
}

func (v *ViewFuncs) setDefaults() {
	if v.Login == nil {
		v.Login = views.Login
	}
	if v.Dashboard == nil {
		v.Dashboard = views.Dashboard
	}
	if v.Post == nil {
		v.Post = views.Post
	}
	if v.NewPost == nil {
		v.NewPost = views.NewPost
	}
	if v.ConfirmDelete == nil {
		v.ConfirmDelete = views.ConfirmDelete
	}
	if v.NotFound == nil {
		v.NotFound = views.NotFound
	}
	if v.ServerError == nil {
		v.ServerError = views.ServerError
	}
}

// App is the central blogadmin application. It wires together the object
// store, repository, sessions, handlers, middleware, and templates.
type App struct {
	Config   Config
	Echo     *echo.Echo
	Repo     *posts.Repository
	Sessions *session.Store
	Gate     identity.Gate
	Logger   *zap.Logger
	Views    ViewFuncs

	store        objectstore.Client
	closeStore   func() error
	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	now          func() time.Time
	ready        bool
}

// New creates a new App with the given configuration and view functions.
func New(cfg Config, v ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()
	v.setDefaults()

	a := &App{
		Config:   cfg,
		Echo:     echo.New(),
		Views:    v,
		Sessions: session.NewStore(sessionMaxAge),
		Gate:     identity.Gate{AllowedEmail: cfg.AllowedEmail, AllowedName: cfg.AllowedName},
		Logger:   zap.NewNop(),
		now:      time.Now,
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Setup validates the configuration, connects the object store and
// registers middleware and routes. Start calls it; tests can call it and
// then serve a.Echo directly.
func (a *App) Setup(ctx context.Context) error {
	if a.ready {
		return nil
	}
	if err := a.Config.Validate(); err != nil {
		return err
	}
	consistency, err := posts.ParseConsistency(a.Config.Consistency)
	if err != nil {
		return fmt.Errorf("blogadmin: %w", err)
	}

	if a.store == nil {
		store, closer, err := openStore(ctx, a.Config)
		if err != nil {
			return fmt.Errorf("blogadmin: init storage: %w", err)
		}
		a.store, a.closeStore = store, closer
	}

	a.Repo = posts.NewRepository(a.store, a.Config.FileKey,
		posts.WithConsistency(consistency),
		posts.WithClock(a.now),
	)
	a.loginLimiter = NewLoginLimiter(a.Config.LoginAttempts, a.Config.LoginWindow)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.ready = true
	a.Logger.Info("blogadmin configured",
		zap.String("provider", a.Config.StorageProvider),
		zap.String("bucket", a.Config.BucketName),
		zap.String("file_key", a.Config.FileKey),
		zap.String("consistency", a.Config.Consistency),
	)
	return nil
}

// Start sets the app up and serves until ctx is cancelled, then shuts down
// gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.Setup(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("listening", zap.String("addr", a.Config.Addr))
		if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.Logger.Info("shutting down")
	return a.Echo.Shutdown(shutdownCtx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.StaticFS("/public", echo.MustSubFS(EmbeddedAssets, "embedded"))
	e.GET("/healthz/", a.handleHealthz)

	e.GET("/", a.handleIndex)
	e.POST("/auth/google/", a.handleGoogleLogin)
	e.POST("/logout/", a.handleLogout)

	g := e.Group("/posts", a.requireSession)
	g.GET("/new/", a.handleNewPost)
	g.POST("/", a.handleCreatePost)
	g.GET("/:id/", a.handleShowPost)
	g.GET("/:id/delete/", a.handleConfirmDelete)
	g.POST("/:id/delete/", a.handleDeletePost)
}

// Close releases the object store client.
func (a *App) Close() error {
	if a.closeStore != nil {
		return a.closeStore()
	}
	return nil
}

// site returns the settings shared by every page.
func (a *App) site() views.SiteConfig {
	return views.SiteConfig{
		Name:           a.Config.SiteName,
		GoogleClientID: a.Config.GoogleClientID,
		LoginURI:       BuildURL(a.Config.BaseURL, "auth", "google"),
	}
}

// storageContext bounds a storage call by the configured timeout. The
// request context is the parent, so a client disconnect cancels the call.
func (a *App) storageContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), a.Config.StorageTimeout)
}

func openStore(ctx context.Context, cfg Config) (objectstore.Client, func() error, error) {
	switch cfg.StorageProvider {
	case ProviderGCS:
		var opts []option.ClientOption
		if cfg.StorageEndpoint != "" {
			opts = append(opts, option.WithEndpoint(cfg.StorageEndpoint))
		}
		c, err := objectstore.NewGCS(ctx, cfg.BucketName, opts...)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		c, err := objectstore.NewS3(objectstore.S3Config{
			Bucket:          cfg.BucketName,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Endpoint:        cfg.StorageEndpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, func() error { return nil }, nil
	}
}
