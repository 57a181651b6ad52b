package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard/config"
	"github.com/taskboard/taskboard/database"
	"github.com/taskboard/taskboard/database/model"
	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/util/crypto"
	"github.com/taskboard/taskboard/web/entity"
)

func init() {
	logger.InitTestLogger()
	crypto.SetParams(crypto.Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16})
}

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

var errMailDown = errors.New("smtp unavailable")

type fixture struct {
	cfg    *config.ServerConfig
	tokens *TokenService
	mailer *recordingMailer
	mail   *MailService
	users  *UserService
	auth   *AuthService
	tasks  *TaskService
	status *StatusService
	audit  *AuditLogService
}

func testServerConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Port:               8080,
		AllowedOrigin:      "http://localhost:3000",
		AppURL:             "http://localhost:3000",
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		CookieSecret:       "cookie-secret",
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    24 * time.Hour,
		MailMaxAttempts:    3,
		MailRetryBackoff:   time.Minute,
	}
}

func setup(t *testing.T) *fixture {
	t.Helper()
	require.NoError(t, database.InitMemoryDB())
	t.Cleanup(func() { _ = database.CloseDB() })

	f := &fixture{cfg: testServerConfig(), mailer: &recordingMailer{}}
	var err error
	f.tokens, err = NewTokenService(f.cfg)
	require.NoError(t, err)
	f.mail = NewMailService(f.mailer, f.cfg)
	f.users = NewUserService(f.mail, f.cfg.AppURL)
	f.auth = NewAuthService(f.tokens, f.users)
	f.tasks = NewTaskService()
	f.status = NewStatusService()
	f.audit = NewAuditLogService()
	return f
}

var tempPasswordRe = regexp.MustCompile(`Temporary password: (\S+)`)

// queuedTempPassword digs the temporary password out of the newest queued invite for email.
func queuedTempPassword(t *testing.T, email string) string {
	t.Helper()
	var mail model.OutboundEmail
	require.NoError(t, database.GetDB().Where(&model.OutboundEmail{To: email}).Order("id DESC").First(&mail).Error)
	m := tempPasswordRe.FindStringSubmatch(mail.Body)
	require.Len(t, m, 2)
	return m[1]
}

// activeUser signs up email, resets its password to password and returns the user.
func (f *fixture) activeUser(t *testing.T, email, password string) *model.User {
	t.Helper()
	ctx := context.Background()
	user, err := f.auth.Signup(ctx, &entity.SignupForm{Name: "Test", Email: email}, nil)
	require.NoError(t, err)
	_, err = f.auth.ResetPassword(ctx, &entity.ResetPasswordForm{
		EmailOrUsername: email,
		TempPassword:    queuedTempPassword(t, email),
		NewPassword:     password,
	})
	require.NoError(t, err)
	return user
}
