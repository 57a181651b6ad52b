package job

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard/config"
	"github.com/taskboard/taskboard/database"
	"github.com/taskboard/taskboard/database/model"
	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/util/crypto"
	"github.com/taskboard/taskboard/web/service"
)

func init() {
	logger.InitTestLogger()
	crypto.SetParams(crypto.Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16})
}

type countingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *countingMailer) Send(_ context.Context, to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

func testConfig() *config.ServerConfig {
	return &config.ServerConfig{
		AccessTokenSecret:  "a",
		RefreshTokenSecret: "r",
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    time.Hour,
		MailMaxAttempts:    3,
		MailRetryBackoff:   time.Minute,
	}
}

func initDB(t *testing.T) {
	t.Helper()
	require.NoError(t, database.InitMemoryDB())
	t.Cleanup(func() { _ = database.CloseDB() })
}

func queueMail(t *testing.T, to string) {
	t.Helper()
	require.NoError(t, database.GetDB().Create(&model.OutboundEmail{
		To:            to,
		Subject:       "hello",
		Body:          "body",
		NextAttemptAt: time.Now().Add(-time.Second),
	}).Error)
}

func TestMailQueueJobDelivers(t *testing.T) {
	initDB(t)
	mailer := &countingMailer{}
	job := NewMailQueueJob(service.NewMailService(mailer, testConfig()))
	queueMail(t, "a@example.com")
	queueMail(t, "b@example.com")

	job.Run()
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, mailer.sent)

	var pending int64
	require.NoError(t, database.GetDB().Model(&model.OutboundEmail{}).Where("sent_at IS NULL").Count(&pending).Error)
	assert.Zero(t, pending)

	job.Run()
	assert.Len(t, mailer.sent, 2)
}

func TestMailQueueJobSkipsOverlappingRun(t *testing.T) {
	initDB(t)
	mailer := &countingMailer{}
	job := NewMailQueueJob(service.NewMailService(mailer, testConfig()))
	queueMail(t, "a@example.com")

	job.running.Store(true)
	job.Run()
	assert.Empty(t, mailer.sent)

	job.running.Store(false)
	job.Run()
	assert.Len(t, mailer.sent, 1)
}

func TestTokenCleanupJob(t *testing.T) {
	initDB(t)
	cfg := testConfig()
	tokens, err := service.NewTokenService(cfg)
	require.NoError(t, err)
	users := service.NewUserService(service.NewMailService(service.LogMailer{}, cfg), "")
	admin, _, err := users.CreateAdmin(context.Background(), "Root", "root@example.com")
	require.NoError(t, err)

	db := database.GetDB()
	live := &model.RefreshToken{Token: "live", UserId: admin.Id, ExpiresAt: time.Now().Add(time.Hour)}
	stale := &model.RefreshToken{Token: "stale", UserId: admin.Id, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, db.Create(live).Error)
	require.NoError(t, db.Create(stale).Error)
	require.NoError(t, db.Model(stale).UpdateColumn("expires_at", time.Now().Add(-time.Minute)).Error)

	NewTokenCleanupJob(service.NewAuthService(tokens, users)).Run()

	var left []model.RefreshToken
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, "live", left[0].Token)
}

func TestAuditCleanupJob(t *testing.T) {
	initDB(t)
	db := database.GetDB()
	require.NoError(t, db.Create(&model.AuditLog{Action: "OLD", Timestamp: time.Now().AddDate(0, 0, -40)}).Error)
	require.NoError(t, db.Create(&model.AuditLog{Action: "NEW", Timestamp: time.Now()}).Error)

	NewAuditCleanupJob(service.NewAuditLogService(), 30).Run()

	var left []model.AuditLog
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, "NEW", left[0].Action)

	assert.Equal(t, defaultAuditRetentionDays, NewAuditCleanupJob(nil, 0).retentionDays)
}

func TestRotateLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskboard.log")
	require.NoError(t, rotate(path))

	require.NoError(t, os.WriteFile(path, []byte("line one\n"), 0o640))
	require.NoError(t, rotate(path))

	prev, err := os.ReadFile(path + ".prev")
	require.NoError(t, err)
	assert.Equal(t, "line one\n", string(prev))
	cur, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, cur)
}
