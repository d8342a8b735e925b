package notify

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// SESAPI is the subset of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends emails via AWS SES.
type SESSender struct {
	client           SESAPI
	fromEmail        string
	fromName         string
	configurationSet string
	logger           *logging.Logger
}

// SESConfig holds configuration for AWS SES.
type SESConfig struct {
	FromEmail string
	FromName  string
	// ConfigurationSet routes bounce and complaint events; optional.
	ConfigurationSet string
}

// NewSESSender returns nil when no client or sender address is given.
func NewSESSender(client SESAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil || cfg.FromEmail == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "Vet Clinic"
	}
	return &SESSender{
		client:           client,
		fromEmail:        cfg.FromEmail,
		fromName:         cfg.FromName,
		configurationSet: cfg.ConfigurationSet,
		logger:           logger,
	}
}

// Send sends an email via AWS SES.
func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return ErrNotConfigured
	}

	body := &types.Body{}
	if msg.Body != "" {
		body.Text = &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")}
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}

	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}
	input.EmailTags = sesTags(msg)

	output, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("SES send failed", "error", err, "kind", msg.Kind)
		return fmt.Errorf("notify: SES send: %w", err)
	}

	s.logger.Info("email sent via SES", "kind", msg.Kind, "appointment_id", msg.Tags["appointment_id"], "message_id", aws.ToString(output.MessageId))
	return nil
}

// SES tag names and values allow only ASCII letters, digits, '_' and '-'.
var sesTagUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

func sesTags(msg EmailMessage) []types.MessageTag {
	var tags []types.MessageTag
	if msg.Kind != "" {
		tags = append(tags, types.MessageTag{Name: aws.String("kind"), Value: aws.String(string(msg.Kind))})
	}
	keys := make([]string, 0, len(msg.Tags))
	for k := range msg.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := sesTagUnsafe.ReplaceAllString(msg.Tags[k], "_")
		if v == "" {
			continue
		}
		tags = append(tags, types.MessageTag{
			Name:  aws.String(sesTagUnsafe.ReplaceAllString(k, "_")),
			Value: aws.String(v),
		})
	}
	return tags
}

var _ EmailSender = (*SESSender)(nil)
