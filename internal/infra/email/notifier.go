package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	addr   string
	from   string
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		addr:   fmt.Sprintf("%s:%d", host, port),
		from:   from,
		send:   smtp.SendMail,
		logger: logger,
	}
}

// NotifyFailure tells the uploader that their game could not be analyzed after every retry.
func (n *SMTPNotifier) NotifyFailure(_ context.Context, userEmail, sessionID, videoKey, errorMsg string) error {
	msg := failureMessage(n.from, userEmail, sessionID, videoKey, errorMsg)

	if err := n.send(n.addr, nil, n.from, []string{userEmail}, []byte(msg)); err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", userEmail),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", userEmail),
		zap.String("session_id", sessionID),
	)
	return nil
}

func failureMessage(from, to, sessionID, videoKey, errorMsg string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: GirlsNav - Game analysis failed [Session %s]\r\n", sessionID)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString("Hello,\r\n\r\n")
	b.WriteString("We could not produce game stats for your video after all retry attempts.\r\n\r\n")
	fmt.Fprintf(&b, "Session: %s\r\n", sessionID)
	fmt.Fprintf(&b, "Video: %s\r\n", videoKey)
	fmt.Fprintf(&b, "Error: %s\r\n\r\n", errorMsg)
	b.WriteString("You can upload the recording again from the GirlsNav app.\r\n\r\n")
	b.WriteString("-- GirlsNav Game Analysis")
	return b.String()
}
