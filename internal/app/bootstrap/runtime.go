package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/vetclinic-platform/internal/config"
	"github.com/wolfman30/vetclinic-platform/internal/notify"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildEmailSender picks the email provider named by EMAIL_PROVIDER. With
// "auto", SendGrid wins over SES and the stub is used when neither is
// configured. A nil result disables email.
func BuildEmailSender(cfg *appconfig.Config, ses notify.SESAPI, logger *logging.Logger) notify.EmailSender {
	if cfg == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	sendgrid := func() notify.EmailSender {
		s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if s == nil {
			return nil
		}
		return s
	}
	sesSender := func() notify.EmailSender {
		s := notify.NewSESSender(ses, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if s == nil {
			return nil
		}
		return s
	}

	switch cfg.EmailProvider {
	case "sendgrid":
		if s := sendgrid(); s != nil {
			return s
		}
		logger.Warn("EMAIL_PROVIDER=sendgrid but SENDGRID_API_KEY is not set; email disabled")
		return nil
	case "ses":
		if s := sesSender(); s != nil {
			return s
		}
		logger.Warn("EMAIL_PROVIDER=ses but SES is not configured; email disabled")
		return nil
	case "stub":
		return notify.NewStubEmailSender(logger)
	}

	if s := sendgrid(); s != nil {
		logger.Info("email provider selected", "provider", "sendgrid")
		return s
	}
	if s := sesSender(); s != nil {
		logger.Info("email provider selected", "provider", "ses")
		return s
	}
	logger.Info("no email provider configured; using stub sender")
	return notify.NewStubEmailSender(logger)
}
