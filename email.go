package localauth

import (
	"fmt"
	"log"
	"time"
)

// EmailSender is the narrow contract localauth has with the email transport.
// Applications plug in their SMTP/provider implementation; localauth never
// sees transport details.
type EmailSender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// ConsoleEmailSender is a development implementation that logs emails to
// the console instead of delivering them.
type ConsoleEmailSender struct{}

func (c *ConsoleEmailSender) Send(to, subject, htmlBody, textBody string) error {
	log.Printf("\n=== EMAIL ===")
	log.Printf("To: %s", to)
	log.Printf("Subject: %s", subject)
	log.Printf("Body: %s", textBody)
	log.Printf("=============\n")
	return nil
}

// composeResetEmail builds the password reset email. The expiry minutes
// shown to the user come from the same TTL that stamped the stored digest.
func composeResetEmail(appName, recipientName, resetLink string, ttl time.Duration) (subject, htmlBody, textBody string) {
	if appName == "" {
		appName = "Your App"
	}
	if recipientName == "" {
		recipientName = "there"
	}
	minutes := int(ttl.Minutes())

	subject = fmt.Sprintf("Password Reset Request - %s", appName)

	htmlBody = fmt.Sprintf(`<!DOCTYPE html>
<html>
<body>
<p>Hi %s,</p>
<p>You recently requested to reset your password. Click the link below to reset it.</p>
<p><a href="%s">Reset Password</a></p>
<p><strong>This password reset link will expire in %d minutes.</strong></p>
<p>If you did not request a password reset, please ignore this email.</p>
<p>Thanks,<br>The %s Team</p>
</body>
</html>`, recipientName, resetLink, minutes, appName)

	textBody = fmt.Sprintf(`Hi %s,

You recently requested to reset your password.

Click this link to reset your password: %s

This password reset link will expire in %d minutes.

If you did not request a password reset, please ignore this email.

Thanks,
The %s Team`, recipientName, resetLink, minutes, appName)

	return subject, htmlBody, textBody
}
