// Package session carries login tokens between the server and the browser.
// Tokens only ever travel in encrypted HTTP-only cookies written through a
// Transport; the authenticated identity of the current request lives in the
// gin context.
package session

import (
	"crypto/sha256"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"

	"github.com/taskboard/taskboard/database/model"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"

	loginUser = "LOGIN_USER"
)

// ErrNoCookie is returned by Read when the cookie is absent or cannot be decoded.
var ErrNoCookie = errors.New("session cookie missing or invalid")

// Transport writes and reads named session values on the HTTP exchange.
type Transport interface {
	Set(c *gin.Context, name, value string, ttl time.Duration) error
	Clear(c *gin.Context, name string)
	Read(c *gin.Context, name string) (string, error)
}

// CookieTransport stores values in cookies encrypted and signed with keys
// derived from a single secret.
type CookieTransport struct {
	codec  *securecookie.SecureCookie
	secure bool
}

func deriveKey(purpose, secret string) []byte {
	sum := sha256.Sum256([]byte(purpose + ":" + secret))
	return sum[:]
}

func NewCookieTransport(secret string, secure bool) *CookieTransport {
	codec := securecookie.New(deriveKey("hash", secret), deriveKey("block", secret))
	// expiry is enforced by the cookie Max-Age and the token itself
	codec.MaxAge(0)
	return &CookieTransport{codec: codec, secure: secure}
}

func (t *CookieTransport) Set(c *gin.Context, name, value string, ttl time.Duration) error {
	encoded, err := t.codec.Encode(name, value)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, encoded, int(ttl/time.Second), "/", "", t.secure, true)
	return nil
}

func (t *CookieTransport) Clear(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", t.secure, true)
}

func (t *CookieTransport) Read(c *gin.Context, name string) (string, error) {
	raw, err := c.Cookie(name)
	if err != nil || raw == "" {
		return "", ErrNoCookie
	}
	var value string
	if err := t.codec.Decode(name, raw, &value); err != nil {
		return "", ErrNoCookie
	}
	return value, nil
}

// ClearSession drops both token cookies. Safe to call when none are set.
func ClearSession(c *gin.Context, t Transport) {
	t.Clear(c, AccessCookie)
	t.Clear(c, RefreshCookie)
}

// SetLoginUser attaches the authenticated user to the request.
func SetLoginUser(c *gin.Context, user *model.User) {
	c.Set(loginUser, user)
	c.Set("user_id", user.Id)
	c.Set("role", string(user.Role))
}

func GetLoginUser(c *gin.Context) *model.User {
	if obj, ok := c.Get(loginUser); ok {
		if user, ok := obj.(*model.User); ok {
			return user
		}
	}
	return nil
}

func IsLogin(c *gin.Context) bool {
	return GetLoginUser(c) != nil
}
