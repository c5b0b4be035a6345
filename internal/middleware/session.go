package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sourcetrak/internal/session"
	"github.com/iliyamo/sourcetrak/internal/utils"
)

// SessionCookie carries the signed session token in browsers.
const SessionCookie = "sourcetrak_session"

// Context keys set by Session.
const (
	ctxSID     = "sid"
	ctxSession = "session"
	ctxUserID  = "user_id"
	ctxRole    = "role"
)

// SessionOpener returns the session store of sid, ready to Load.
type SessionOpener func(sid string) *session.Store

// Session authenticates a request from the session token in the
// Authorization header ("Bearer <token>") or the session cookie.  The token
// names a session id whose snapshot holds the user; a valid token whose
// snapshot is gone (logged out, expired) is rejected like a bad token.
func Session(secret string, open SessionOpener) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFrom(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			sid, err := utils.ParseSessionToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid session"})
			}
			store := open(sid)
			store.Load(c.Request().Context())
			u, ok := store.CurrentUser()
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired"})
			}
			c.Set(ctxSID, sid)
			c.Set(ctxSession, store)
			c.Set(ctxUserID, u.ID.String())
			c.Set(ctxRole, string(u.Role))
			return next(c)
		}
	}
}

func tokenFrom(c echo.Context) string {
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if ck, err := c.Cookie(SessionCookie); err == nil {
		return ck.Value
	}
	return ""
}
