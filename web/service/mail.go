package service

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/taskboard/taskboard/config"
	"github.com/taskboard/taskboard/database"
	"github.com/taskboard/taskboard/database/model"
	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/util/metrics"
)

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewMailer picks SMTP when a host is configured and the log mailer otherwise.
func NewMailer(cfg config.SMTPConfig) Mailer {
	if cfg.Host == "" {
		return LogMailer{}
	}
	return &SMTPMailer{cfg: cfg}
}

type SMTPMailer struct {
	cfg config.SMTPConfig
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("header injection in recipient or subject")
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	msg := "From: " + m.cfg.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
		body

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg))
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, body string) error {
	logger.Infof("mail to=%s subject=%q\n%s", to, subject, body)
	return nil
}

// MailService owns the outbound email queue.
type MailService struct {
	DB          *gorm.DB
	mailer      Mailer
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

func NewMailService(mailer Mailer, cfg *config.ServerConfig) *MailService {
	return &MailService{
		DB:          database.GetDB(),
		mailer:      mailer,
		maxAttempts: cfg.MailMaxAttempts,
		backoff:     cfg.MailRetryBackoff,
		now:         time.Now,
	}
}

// Enqueue stores a message for delivery using tx so it commits with the caller.
func (s *MailService) Enqueue(tx *gorm.DB, to, subject, body string) error {
	mail := &model.OutboundEmail{
		To:            to,
		Subject:       subject,
		Body:          body,
		NextAttemptAt: s.now(),
	}
	return tx.Create(mail).Error
}

// ProcessQueue sends up to batch due messages and reports how many went out.
// Failures are rescheduled with a linear backoff until maxAttempts is reached.
func (s *MailService) ProcessQueue(ctx context.Context, batch int) (int, error) {
	var due []model.OutboundEmail
	err := s.DB.WithContext(ctx).
		Where("sent_at IS NULL AND attempts < ? AND next_attempt_at <= ?", s.maxAttempts, s.now()).
		Order("id").
		Limit(batch).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		mail := &due[i]
		mail.Attempts++
		sendErr := s.mailer.Send(ctx, mail.To, mail.Subject, mail.Body)
		metrics.MailDeliveries.WithLabelValues(metrics.Outcome(sendErr)).Inc()
		now := s.now()
		if sendErr == nil {
			mail.SentAt = &now
			mail.LastError = ""
			sent++
		} else {
			mail.LastError = sendErr.Error()
			mail.NextAttemptAt = now.Add(s.backoff * time.Duration(mail.Attempts))
			if mail.Attempts >= s.maxAttempts {
				logger.Warningf("giving up on mail %d to %s after %d attempts: %v", mail.Id, mail.To, mail.Attempts, sendErr)
			} else {
				logger.Debugf("mail %d to %s failed (attempt %d): %v", mail.Id, mail.To, mail.Attempts, sendErr)
			}
		}
		if err := s.DB.WithContext(ctx).Save(mail).Error; err != nil {
			return sent, err
		}
	}
	return sent, nil
}

func inviteEmail(name, username, tempPassword, appURL string) (string, string) {
	subject := "Your taskboard account"
	body := fmt.Sprintf(`Hello %s,

An account has been created for you.

Username: %s
Temporary password: %s

Sign in at %s/reset-password to choose your own password before logging in.
`, name, username, tempPassword, strings.TrimRight(appURL, "/"))
	return subject, body
}
