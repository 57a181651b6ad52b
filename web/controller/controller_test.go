package controller

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard/config"
	"github.com/taskboard/taskboard/database"
	"github.com/taskboard/taskboard/database/model"
	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/util/crypto"
	"github.com/taskboard/taskboard/web/cache"
	"github.com/taskboard/taskboard/web/middleware"
	"github.com/taskboard/taskboard/web/service"
	"github.com/taskboard/taskboard/web/session"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.InitTestLogger()
	crypto.SetParams(crypto.Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16})
}

type app struct {
	router *gin.Engine
	users  *service.UserService
}

func newApp(t *testing.T) *app {
	t.Helper()
	require.NoError(t, database.InitMemoryDB())
	require.NoError(t, cache.InitRedis(context.Background(), ""))
	t.Cleanup(func() {
		_ = cache.Close()
		_ = database.CloseDB()
	})

	cfg := &config.ServerConfig{
		AccessTokenSecret:  "access",
		RefreshTokenSecret: "refresh",
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    24 * time.Hour,
		MailMaxAttempts:    3,
		MailRetryBackoff:   time.Minute,
	}
	tokens, err := service.NewTokenService(cfg)
	require.NoError(t, err)
	users := service.NewUserService(service.NewMailService(service.LogMailer{}, cfg), "http://app")

	r := gin.New()
	require.NoError(t, middleware.TrustProxies(r, nil))
	r.NoRoute(middleware.NoRoute)
	NewAPIController(r.Group(""), &Services{
		Auth:            service.NewAuthService(tokens, users),
		Tokens:          tokens,
		Users:           users,
		Tasks:           service.NewTaskService(),
		Statuses:        service.NewStatusService(),
		Audit:           service.NewAuditLogService(),
		Transport:       session.NewCookieTransport("cookie", false),
		LoginRatePerMin: 100,
		AuditRetention:  90,
	})
	return &app{router: r, users: users}
}

// client keeps the cookies the server hands out, like a browser would.
type client struct {
	t      *testing.T
	app    *app
	jar    map[string]*http.Cookie
	header http.Header
}

func (a *app) client(t *testing.T) *client {
	return &client{t: t, app: a, jar: map[string]*http.Cookie{}, header: http.Header{}}
}

type reply struct {
	Code int
	Msg  struct {
		StatusCode int             `json:"statusCode"`
		Message    string          `json:"message"`
		Data       json.RawMessage `json:"data"`
	}
	cookies []*http.Cookie
}

func (c *client) do(method, path string, body any) reply {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.header {
		req.Header[k] = v
	}
	for _, ck := range c.jar {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.app.router.ServeHTTP(w, req)

	var r reply
	r.Code = w.Code
	r.cookies = w.Result().Cookies()
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &r.Msg), w.Body.String())
	for _, ck := range r.cookies {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.jar, ck.Name)
			continue
		}
		c.jar[ck.Name] = ck
	}
	return r
}

func (r reply) into(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Msg.Data, v))
}

var tempPasswordRe = regexp.MustCompile(`Temporary password: (\S+)`)

func tempPassword(t *testing.T, email string) string {
	t.Helper()
	var mail model.OutboundEmail
	require.NoError(t, database.GetDB().Where(&model.OutboundEmail{To: email}).Order("id DESC").First(&mail).Error)
	m := tempPasswordRe.FindStringSubmatch(mail.Body)
	require.Len(t, m, 2)
	return m[1]
}

// loggedIn signs email up, resets the password and logs in.
func (a *app) loggedIn(t *testing.T, email string) *client {
	t.Helper()
	c := a.client(t)
	r := c.do(http.MethodPost, "/auth/signup", gin.H{"name": "Someone", "email": email})
	require.Equal(t, http.StatusCreated, r.Code, r.Msg.Message)
	r = c.do(http.MethodPut, "/auth/reset-password", gin.H{
		"emailOrUsername": email, "tempPassword": tempPassword(t, email), "newPassword": "correct-horse",
	})
	require.Equal(t, http.StatusOK, r.Code, r.Msg.Message)
	r = c.do(http.MethodPost, "/auth/login", gin.H{"emailOrUsername": email, "password": "correct-horse"})
	require.Equal(t, http.StatusOK, r.Code, r.Msg.Message)
	return c
}

func (a *app) loggedInAdmin(t *testing.T, email string) *client {
	t.Helper()
	_, temp, err := a.users.CreateAdmin(context.Background(), "Admin", email)
	require.NoError(t, err)
	c := a.client(t)
	r := c.do(http.MethodPut, "/auth/reset-password", gin.H{
		"emailOrUsername": email, "tempPassword": temp, "newPassword": "admin-password",
	})
	require.Equal(t, http.StatusOK, r.Code, r.Msg.Message)
	r = c.do(http.MethodPost, "/auth/login", gin.H{"emailOrUsername": email, "password": "admin-password"})
	require.Equal(t, http.StatusOK, r.Code, r.Msg.Message)
	return c
}

func TestAuthLifecycle(t *testing.T) {
	a := newApp(t)
	c := a.client(t)

	r := c.do(http.MethodPost, "/auth/signup", gin.H{"name": "Ann", "email": "Ann@Example.com", "password": "ignored"})
	require.Equal(t, http.StatusCreated, r.Code)
	assert.Equal(t, http.StatusCreated, r.Msg.StatusCode)

	r = c.do(http.MethodPost, "/auth/signup", gin.H{"name": "Ann", "email": "ann@example.com"})
	assert.Equal(t, http.StatusConflict, r.Code)

	r = c.do(http.MethodPost, "/auth/login", gin.H{"emailOrUsername": "ann@example.com", "password": "whatever"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "Please reset your password", r.Msg.Message)

	temp := tempPassword(t, "ann@example.com")
	r = c.do(http.MethodPut, "/auth/reset-password", gin.H{
		"emailOrUsername": "ann@example.com", "tempPassword": "wrong", "newPassword": "new-password",
	})
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = c.do(http.MethodPut, "/auth/reset-password", gin.H{
		"emailOrUsername": "ann@example.com", "tempPassword": temp, "newPassword": "new-password",
	})
	require.Equal(t, http.StatusOK, r.Code)

	r = c.do(http.MethodPost, "/auth/login", gin.H{"emailOrUsername": "ann@example.com", "password": "new-password"})
	require.Equal(t, http.StatusOK, r.Code)
	var login struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	r.into(t, &login)
	assert.Equal(t, "ann@example.com", login.User.Email)
	assert.NotEmpty(t, login.AccessToken)
	assert.NotEmpty(t, login.RefreshToken)
	for _, ck := range r.cookies {
		assert.True(t, ck.HttpOnly, ck.Name)
		assert.Equal(t, "/", ck.Path)
	}
	assert.Contains(t, c.jar, session.AccessCookie)
	assert.Contains(t, c.jar, session.RefreshCookie)

	r = c.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, r.Code)
	var me struct {
		Email string `json:"email"`
	}
	r.into(t, &me)
	assert.Equal(t, "ann@example.com", me.Email)

	r = c.do(http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusOK, r.Code)

	r = c.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, r.Code)
	assert.NotContains(t, c.jar, session.AccessCookie)
	assert.NotContains(t, c.jar, session.RefreshCookie)

	r = c.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, r.Code)
	r = c.do(http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, r.Code)
}

func TestLoginBadCredentials(t *testing.T) {
	a := newApp(t)
	c := a.loggedIn(t, "bob@example.com")

	r := c.do(http.MethodPost, "/auth/login", gin.H{"emailOrUsername": "bob@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "Invalid email/username or password", r.Msg.Message)

	r = c.do(http.MethodPost, "/auth/login", gin.H{"emailOrUsername": "ghost@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = c.do(http.MethodPost, "/auth/login", gin.H{"password": "missing-login"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
}

func TestForwardedHeadersCannotDodgeLimitOrAudit(t *testing.T) {
	a := newApp(t)
	c := a.loggedIn(t, "dora@example.com")

	c.header.Set("X-Real-IP", "198.51.100.7")
	c.header.Set("X-Forwarded-For", "203.0.113.9")
	r := c.do(http.MethodPost, "/auth/login", gin.H{"emailOrUsername": "dora@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, r.Code)

	var entry model.AuditLog
	require.NoError(t, database.GetDB().Where("action = ?", service.ActionLogin).Order("id DESC").First(&entry).Error)
	assert.Equal(t, "192.0.2.1", entry.IP)

	// every request below shares one rate limit key despite the rotating header
	limited := false
	for i := 0; i < 120 && !limited; i++ {
		c.header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(i%250+1))
		limited = c.do(http.MethodPost, "/auth/login", gin.H{"emailOrUsername": "nobody@example.com", "password": "wrong-pass"}).Code == http.StatusTooManyRequests
	}
	assert.True(t, limited)
}

func TestSignupAdminRequiresAdmin(t *testing.T) {
	a := newApp(t)
	anon := a.client(t)
	r := anon.do(http.MethodPost, "/auth/signup", gin.H{"name": "Eve", "email": "eve@example.com", "user_type": "admin"})
	assert.Equal(t, http.StatusForbidden, r.Code)

	admin := a.loggedInAdmin(t, "root@example.com")
	r = admin.do(http.MethodPost, "/auth/signup", gin.H{"name": "Ops", "email": "ops@example.com", "user_type": "admin"})
	require.Equal(t, http.StatusCreated, r.Code)
	var u struct {
		Role string `json:"role"`
	}
	r.into(t, &u)
	assert.Equal(t, "admin", u.Role)
}

func TestLogoutWithoutSession(t *testing.T) {
	a := newApp(t)
	c := a.loggedIn(t, "carl@example.com")
	access := c.jar[session.AccessCookie]
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/logout", nil).Code)

	// the access token is still valid but no refresh rows remain
	c.jar[session.AccessCookie] = access
	r := c.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "No active session", r.Msg.Message)
}

func TestTasksAreScopedToOwner(t *testing.T) {
	a := newApp(t)
	ann := a.loggedIn(t, "ann@example.com")
	bob := a.loggedIn(t, "bob@example.com")

	r := ann.do(http.MethodPost, "/tasks", gin.H{"title": "Write report", "status_id": 1, "priority": "high"})
	require.Equal(t, http.StatusCreated, r.Code, r.Msg.Message)
	var task struct {
		Id    uint   `json:"id"`
		Title string `json:"title"`
	}
	r.into(t, &task)
	require.NotZero(t, task.Id)
	path := "/tasks/" + jsonID(task.Id)

	r = ann.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, r.Code)
	r = bob.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
	r = bob.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, r.Code)

	r = ann.do(http.MethodPut, path, gin.H{"title": "Write final report"})
	require.Equal(t, http.StatusOK, r.Code)
	r.into(t, &task)
	assert.Equal(t, "Write final report", task.Title)

	var list []map[string]any
	ann.do(http.MethodGet, "/tasks?priority=high", nil).into(t, &list)
	assert.Len(t, list, 1)
	ann.do(http.MethodGet, "/tasks?priority=low", nil).into(t, &list)
	assert.Empty(t, list)
	bob.do(http.MethodGet, "/tasks", nil).into(t, &list)
	assert.Empty(t, list)

	r = ann.do(http.MethodPut, path, gin.H{"clear": []string{"priority"}})
	require.Equal(t, http.StatusOK, r.Code, r.Msg.Message)
	ann.do(http.MethodGet, "/tasks?priority=high", nil).into(t, &list)
	assert.Empty(t, list)
	r = ann.do(http.MethodPut, path, gin.H{"clear": []string{"title"}})
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = ann.do(http.MethodGet, "/tasks?priority=urgent", nil)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	r = ann.do(http.MethodPost, "/tasks", gin.H{"title": "No status"})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	r = ann.do(http.MethodGet, "/tasks/abc", nil)
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = ann.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, r.Code)
	r = ann.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
}

func TestStatusesRequireAdminToEdit(t *testing.T) {
	a := newApp(t)
	user := a.loggedIn(t, "user@example.com")
	admin := a.loggedInAdmin(t, "root@example.com")

	var statuses []map[string]any
	r := user.do(http.MethodGet, "/statuses", nil)
	require.Equal(t, http.StatusOK, r.Code)
	r.into(t, &statuses)
	assert.Len(t, statuses, 3)

	r = user.do(http.MethodPost, "/statuses", gin.H{"name": "blocked"})
	assert.Equal(t, http.StatusForbidden, r.Code)
	assert.Equal(t, http.StatusForbidden, r.Msg.StatusCode)

	r = admin.do(http.MethodPost, "/statuses", gin.H{"name": "blocked"})
	assert.Equal(t, http.StatusCreated, r.Code)
	r = admin.do(http.MethodPost, "/statuses", gin.H{"name": "blocked"})
	assert.Equal(t, http.StatusConflict, r.Code)

	user.do(http.MethodGet, "/statuses", nil).into(t, &statuses)
	assert.Len(t, statuses, 4)

	require.Equal(t, http.StatusCreated, user.do(http.MethodPost, "/tasks", gin.H{"title": "t", "status_id": 1}).Code)
	r = admin.do(http.MethodDelete, "/statuses/1", nil)
	assert.Equal(t, http.StatusConflict, r.Code)
}

func TestUserAdministration(t *testing.T) {
	a := newApp(t)
	user := a.loggedIn(t, "user@example.com")
	admin := a.loggedInAdmin(t, "root@example.com")

	r := user.do(http.MethodGet, "/users", nil)
	assert.Equal(t, http.StatusForbidden, r.Code)

	r = admin.do(http.MethodPost, "/users/invite", gin.H{"name": "New", "email": "new@example.com"})
	require.Equal(t, http.StatusCreated, r.Code)
	var invited struct {
		Id   uint   `json:"id"`
		Role string `json:"role"`
	}
	r.into(t, &invited)
	assert.Equal(t, "user", invited.Role)

	var users []map[string]any
	admin.do(http.MethodGet, "/users", nil).into(t, &users)
	assert.Len(t, users, 3)

	base := "/users/" + jsonID(invited.Id)
	r = admin.do(http.MethodPut, base+"/role", gin.H{"role": "admin"})
	require.Equal(t, http.StatusOK, r.Code)
	r.into(t, &invited)
	assert.Equal(t, "admin", invited.Role)

	r = admin.do(http.MethodPut, base+"/active", gin.H{})
	assert.Equal(t, http.StatusBadRequest, r.Code)
	r = admin.do(http.MethodPut, base+"/active", gin.H{"is_active": false})
	assert.Equal(t, http.StatusOK, r.Code)

	r = admin.do(http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusOK, r.Code)
	r = admin.do(http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
}

func TestDeactivatedUserLosesSession(t *testing.T) {
	a := newApp(t)
	user := a.loggedIn(t, "user@example.com")
	admin := a.loggedInAdmin(t, "root@example.com")

	var me struct {
		Id uint `json:"id"`
	}
	user.do(http.MethodGet, "/auth/me", nil).into(t, &me)

	r := admin.do(http.MethodPut, "/users/"+jsonID(me.Id)+"/active", gin.H{"is_active": false})
	require.Equal(t, http.StatusOK, r.Code)

	assert.Equal(t, http.StatusUnauthorized, user.do(http.MethodGet, "/auth/me", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, user.do(http.MethodPost, "/auth/refresh", nil).Code)
}

func TestAdminDiagnostics(t *testing.T) {
	a := newApp(t)
	user := a.loggedIn(t, "user@example.com")
	admin := a.loggedInAdmin(t, "root@example.com")

	assert.Equal(t, http.StatusForbidden, user.do(http.MethodGet, "/logs", nil).Code)
	assert.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/logs?count=5", nil).Code)
	assert.Equal(t, http.StatusBadRequest, admin.do(http.MethodGet, "/logs?count=-1", nil).Code)

	r := admin.do(http.MethodGet, "/audit?action="+service.ActionLogin, nil)
	require.Equal(t, http.StatusOK, r.Code)
	var page struct {
		Logs  []model.AuditLog `json:"logs"`
		Total int64            `json:"total"`
	}
	r.into(t, &page)
	assert.EqualValues(t, 2, page.Total)
	for _, l := range page.Logs {
		assert.Equal(t, service.ActionLogin, l.Action)
	}

	r = admin.do(http.MethodPost, "/audit/clean?days=30", nil)
	assert.Equal(t, http.StatusOK, r.Code)
}

func TestUnknownRoute(t *testing.T) {
	a := newApp(t)
	r := a.client(t).do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, http.StatusNotFound, r.Msg.StatusCode)
}

func jsonID(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
