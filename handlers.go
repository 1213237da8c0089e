package blogadmin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/blogadmin/posts"
	"github.com/eringen/blogadmin/views"
)

func (a *App) handleIndex(c echo.Context) error {
	entry, ok := a.currentSession(c)
	if !ok {
		return Render(c, a.Views.Login(views.LoginPage{Site: a.site(), Message: loginToast(c.QueryParam("msg"))}))
	}

	msg := c.QueryParam("msg")
	ctx, cancel := a.storageContext(c)
	defer cancel()
	list, err := a.Repo.ListPosts(ctx)
	if err != nil {
		if clientGone(c) {
			return nil
		}
		a.Logger.Warn("list posts", zap.String("session", entry.ID), zap.Error(err))
		msg = listingMessage(err)
		list = entry.Posts
	} else {
		a.Sessions.SetPosts(entry.ID, list)
	}

	q := strings.TrimSpace(c.QueryParam("q"))
	return Render(c, a.Views.Dashboard(views.DashboardPage{
		Site:    a.site(),
		User:    entry.User,
		Posts:   posts.FilterByTitle(list, q),
		Total:   len(list),
		Query:   q,
		Message: msg,
		CSRF:    CsrfToken(c),
	}))
}

// clientGone reports whether the client disconnected, in which case the
// result of a cancelled storage call is discarded.
func clientGone(c echo.Context) bool {
	return c.Request().Context().Err() != nil
}

func (a *App) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": a.Sessions.Len(),
	})
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error("server error",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err),
		)
		_ = RenderStatus(c, code, a.Views.ServerError(a.site()))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
