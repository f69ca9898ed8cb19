// Package mail provides the mailers used to reach users outside the API.
package mail

import (
	"context"

	"sociapi/domain"
	"sociapi/logging"
)

// Log writes mail to the log instead of delivering it. It is the mailer of
// development setups; the body is only visible at debug level.
type Log struct{}

var _ domain.Mailer = Log{}

func (Log) Send(ctx context.Context, to, subject, body string) error {
	logger := logging.Ctx(ctx)
	logger.Info().Str("to", to).Str("subject", subject).Msg("mail")
	logger.Debug().Str("to", to).Str("body", body).Msg("mail body")
	return nil
}
