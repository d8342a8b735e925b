package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/vetclinic-platform/internal/config"
	"github.com/wolfman30/vetclinic-platform/internal/notify"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// LoadAWSConfig centralizes AWS SDK initialization so both binaries share the
// same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(endpoint)
	}

	return awsCfg, nil
}

// BuildSESClient returns an SES client when SES may be selected, or nil.
// The nil is a plain interface so callers can pass it straight to
// BuildEmailSender.
func BuildSESClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.SESAPI {
	if cfg.EmailProvider != "ses" && cfg.EmailProvider != "auto" {
		return nil
	}
	if strings.TrimSpace(cfg.SESFromEmail) == "" {
		return nil
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Warn("failed to load AWS config; SES disabled", "error", err)
		return nil
	}
	return sesv2.NewFromConfig(awsCfg)
}
