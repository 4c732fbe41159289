package mail

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/mrz1836/postmark"

	"github.com/acornstash/notifier/pkg/dispatch"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Config holds the Postmark credentials and sender identity.
type Config struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN,required"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN,required"`
	FromEmail    string `env:"MAIL_FROM_EMAIL,required"`
	ReplyToEmail string `env:"MAIL_REPLY_TO_EMAIL"`
	Tag          string `env:"MAIL_TAG" envDefault:"notification"`
}

// PostmarkSender sends notification emails through Postmark's transactional
// API.
type PostmarkSender struct {
	client *postmark.Client
	cfg    Config
}

// NewPostmarkSender validates the configuration and creates the sender.
// Tokens and a valid from address are required so misconfiguration fails at
// startup instead of at first delivery.
func NewPostmarkSender(cfg Config) (*PostmarkSender, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: ServerToken is required", ErrInvalidConfig)
	}
	if cfg.AccountToken == "" {
		return nil, fmt.Errorf("%w: AccountToken is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.FromEmail) {
		return nil, fmt.Errorf("%w: FromEmail must be a valid email address", ErrInvalidConfig)
	}
	if cfg.ReplyToEmail != "" && !emailRegex.MatchString(cfg.ReplyToEmail) {
		return nil, fmt.Errorf("%w: ReplyToEmail must be a valid email address", ErrInvalidConfig)
	}

	return &PostmarkSender{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		cfg:    cfg,
	}, nil
}

// Send delivers one notification email. Open tracking is enabled, link
// tracking for the HTML body only.
func (s *PostmarkSender) Send(ctx context.Context, msg dispatch.MailMessage) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.cfg.FromEmail,
		ReplyTo:    s.cfg.ReplyToEmail,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        s.cfg.Tag,
		HTMLBody:   msg.HTML,
		TextBody:   msg.Text,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
