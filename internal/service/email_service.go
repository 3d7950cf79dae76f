package service

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// EmailService sends sign-in and recovery emails via Amazon SES
type EmailService struct {
	client     *sesv2.Client
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
}

// NewEmailService creates a new email service. An empty fromEmail yields a
// disabled service that skips every send.
func NewEmailService(awsRegion, fromEmail, fromName, appBaseURL string) (*EmailService, error) {
	if fromEmail == "" {
		log.Println("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(awsRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sesv2.NewFromConfig(cfg)

	log.Printf("Email service enabled: from=%s, region=%s", fromEmail, awsRegion)

	return &EmailService{
		client:     client,
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: appBaseURL,
		enabled:    true,
	}, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendMagicLinkEmail sends a single-use sign-in link. next, when present,
// rides along so the callback can land the user where they started.
func (s *EmailService) SendMagicLinkEmail(ctx context.Context, toEmail, code, next string) error {
	link := fmt.Sprintf("%s/auth/callback?code=%s", s.appBaseURL, url.QueryEscape(code))
	if next != "" {
		link += "&next=" + url.QueryEscape(next)
	}

	subject := "Your Cadence sign-in link"
	htmlBody := fmt.Sprintf(`
<p>Tap the button below to sign in to Cadence. The link works once and expires in 15 minutes.</p>
<p><a href="%s">Sign in to Cadence</a></p>
<p>If you didn't request this, you can ignore this email.</p>`, link)
	textBody := fmt.Sprintf("Sign in to Cadence (valid for 15 minutes, single use):\n\n%s\n\nIf you didn't request this, ignore this email.", link)

	return s.send(ctx, toEmail, subject, htmlBody, textBody)
}

// SendRecoveryEmail sends a password-recovery link. The type=recovery
// marker routes the user to the account page to set a new password.
func (s *EmailService) SendRecoveryEmail(ctx context.Context, toEmail, code string) error {
	link := fmt.Sprintf("%s/auth/callback?code=%s&type=recovery", s.appBaseURL, url.QueryEscape(code))

	subject := "Reset your Cadence password"
	htmlBody := fmt.Sprintf(`
<p>Tap the button below to sign in and choose a new password. The link works once and expires in 1 hour.</p>
<p><a href="%s">Reset password</a></p>
<p>If you didn't request this, you can ignore this email.</p>`, link)
	textBody := fmt.Sprintf("Reset your Cadence password (valid for 1 hour, single use):\n\n%s\n\nIf you didn't request this, ignore this email.", link)

	return s.send(ctx, toEmail, subject, htmlBody, textBody)
}

func (s *EmailService) send(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	if !s.enabled {
		log.Printf("Skipping email send (service disabled): %q to %s", subject, toEmail)
		return nil
	}

	from := s.fromEmail
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data: aws.String(subject),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data: aws.String(htmlBody),
					},
					Text: &types.Content{
						Data: aws.String(textBody),
					},
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Printf("Email sent: %q to %s", subject, toEmail)
	return nil
}
