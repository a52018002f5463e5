package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v79"
)

var _ stripe.LeveledLoggerInterface = (*stripeLogger)(nil)

// stripeLogger routes stripe-go client logs into slog. Stripe reports every
// request at info, so info is lowered to debug.
type stripeLogger struct {
	logger *slog.Logger
}

func newStripeLogger(logger *slog.Logger) *stripeLogger {
	return &stripeLogger{logger: logger.With("component", "stripe")}
}

func (l *stripeLogger) Debugf(format string, v ...any) {
	l.log(slog.LevelDebug, format, v...)
}

func (l *stripeLogger) Infof(format string, v ...any) {
	l.log(slog.LevelDebug, format, v...)
}

func (l *stripeLogger) Warnf(format string, v ...any) {
	l.log(slog.LevelWarn, format, v...)
}

func (l *stripeLogger) Errorf(format string, v ...any) {
	l.log(slog.LevelError, format, v...)
}

func (l *stripeLogger) log(level slog.Level, format string, v ...any) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	l.logger.Log(ctx, level, fmt.Sprintf(format, v...))
}
