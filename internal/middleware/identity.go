package middleware

// Accessors for the values Session stores in the Echo context.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sourcetrak/internal/model"
	"github.com/iliyamo/sourcetrak/internal/session"
)

// CurrentSession returns the authenticated session store and its id.
func CurrentSession(c echo.Context) (*session.Store, string, bool) {
	store, ok := c.Get(ctxSession).(*session.Store)
	if !ok || store == nil {
		return nil, "", false
	}
	sid, _ := c.Get(ctxSID).(string)
	return store, sid, true
}

// CurrentUser returns the authenticated user.
func CurrentUser(c echo.Context) (model.User, bool) {
	store, _, ok := CurrentSession(c)
	if !ok {
		return model.User{}, false
	}
	return store.CurrentUser()
}

// userID is the rate-limit identity: the user id when authenticated,
// otherwise "anon".
func userID(c echo.Context) string {
	if v, ok := c.Get(ctxUserID).(string); ok && v != "" {
		return v
	}
	return "anon"
}
