package blogadmin

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/blogadmin/identity"
	"github.com/eringen/blogadmin/views"
)

// googleCSRFName is the double-submit cookie and form field set by Google
// Identity Services.
const googleCSRFName = "g_csrf_token"

// handleGoogleLogin is the login_uri callback of the Google sign-in button.
func (a *App) handleGoogleLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		a.Logger.Warn("login rate limited", zap.String("ip", ip))
		return a.renderLogin(c, http.StatusTooManyRequests, msgTooManyAttempts)
	}
	if !validGoogleCSRF(c) {
		a.loginLimiter.Record(ip)
		a.Logger.Warn("login csrf mismatch", zap.String("ip", ip))
		return a.renderLogin(c, http.StatusBadRequest, msgLoginFailed)
	}

	candidate, err := identity.DecodeCredential(c.FormValue("credential"))
	var user identity.Session
	if err == nil {
		user, err = a.Gate.Authenticate(candidate)
	}
	if err != nil {
		a.loginLimiter.Record(ip)
		a.Logger.Info("login rejected",
			zap.String("ip", ip),
			zap.String("email", candidate.Email),
			zap.Error(err),
		)
		return a.renderLogin(c, http.StatusUnauthorized, userMessage(err))
	}

	id := a.Sessions.Create(user)
	if err := setSessionCookie(c, id); err != nil {
		a.Sessions.Destroy(id)
		return err
	}
	a.Logger.Info("login", zap.String("email", user.Email), zap.String("ip", ip))
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) handleLogout(c echo.Context) error {
	if entry, ok := a.currentSession(c); ok {
		a.Sessions.Destroy(entry.ID)
	}
	if err := clearSessionCookie(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) renderLogin(c echo.Context, code int, msg string) error {
	return RenderStatus(c, code, a.Views.Login(views.LoginPage{Site: a.site(), Message: msg}))
}

// validGoogleCSRF checks that the g_csrf_token cookie matches the posted
// field.
func validGoogleCSRF(c echo.Context) bool {
	cookie, err := c.Cookie(googleCSRFName)
	if err != nil || cookie.Value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(c.FormValue(googleCSRFName))) == 1
}
