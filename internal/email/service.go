package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v2"

	"github.com/cwllll/auth-service/internal/logging"
)

// Service delivers transactional mail through Resend. Callers await sends;
// an error return means the message was not accepted for delivery.
type Service struct {
	client    *resend.Client
	fromEmail string
	fromName  string
	// Base URL of this service, used to build verification links
	publicURL string
}

func NewService(apiKey, fromEmail, fromName, publicURL string) *Service {
	return &Service{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		publicURL: publicURL,
	}
}

// SendVerificationEmail sends an email verification link to the user
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, name, token string) error {
	logger := logging.GetLoggerFromContext(ctx)

	verificationLink := fmt.Sprintf("%s/verify-email?token=%s", s.publicURL, token)

	greeting := name
	if greeting == "" {
		greeting = toEmail
	}

	html, err := renderTemplate(verificationTemplate, map[string]string{
		"Name": greeting,
		"Link": verificationLink,
	})
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	text := fmt.Sprintf(
		"Hi %s,\n\nPlease confirm your email address by opening the link below:\n\n%s\n\nIf you did not create this account you can safely ignore this email.\n",
		greeting, verificationLink,
	)

	if err := s.send(ctx, toEmail, "Verify your email address", html, text); err != nil {
		logger.Error("failed to send verification email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("verification email sent", "email", toEmail)
	return nil
}

// SendOTPEmail sends a one-time sign-in code to the user
func (s *Service) SendOTPEmail(ctx context.Context, toEmail, code string) error {
	logger := logging.GetLoggerFromContext(ctx)

	html, err := renderTemplate(otpTemplate, map[string]string{
		"Code": formatOTP(code),
	})
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	text := fmt.Sprintf(
		"Use this code to finish signing in:\n\n%s\n\nIt expires in five minutes. If you did not request it, ignore this email.\n",
		formatOTP(code),
	)

	if err := s.send(ctx, toEmail, "Your one-time sign-in code", html, text); err != nil {
		logger.Error("failed to send sign-in code email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("sign-in code email sent", "email", toEmail)
	return nil
}

func (s *Service) send(ctx context.Context, to, subject, html, text string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail),
		To:      []string{to},
		Subject: subject,
		Html:    html,
		Text:    text,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend request failed: %w", err)
	}

	return nil
}

// formatOTP groups a 6-digit code as "123 456" for readability
func formatOTP(code string) string {
	if len(code) == 6 {
		return code[:3] + " " + code[3:]
	}
	return code
}

func renderTemplate(tmpl string, data map[string]string) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}

const verificationTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .button {
            display: inline-block;
            background-color: #4F46E5;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
        }
    </style>
</head>
<body>
    <h2>Verify your email address</h2>
    <p>Hi {{.Name}},</p>
    <p>Thanks for signing up! Please click the button below to verify your email address and activate your account.</p>

    <a href="{{.Link}}" class="button" style="color: white !important;">Verify Email Address</a>

    <p>Or copy and paste this link into your browser:</p>
    <p style="word-break: break-all; color: #4F46E5;">{{.Link}}</p>

    <p>If you didn't create an account, you can safely ignore this email.</p>
    <div class="footer">
        <p>This link will expire in 24 hours.</p>
    </div>
</body>
</html>
`

const otpTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .code {
            font-size: 32px;
            font-weight: bold;
            letter-spacing: 4px;
            color: #4F46E5;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
        }
    </style>
</head>
<body>
    <h2>Use this code to finish signing in</h2>
    <p>Enter the code below in the app to continue.</p>

    <div class="code">{{.Code}}</div>

    <p>If you didn't request this code, you can safely ignore this email.</p>
    <div class="footer">
        <p>This code will expire in five minutes.</p>
    </div>
</body>
</html>
`
