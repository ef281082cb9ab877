// Package notify shows desktop notifications for errors the user has to act
// on, such as a missing microphone.
package notify

import (
	"log/slog"
	"time"

	"github.com/gen2brain/beeep"
	"golang.org/x/time/rate"
)

// Notifier is anything that can tell the user about a problem.
type Notifier interface {
	Notify(title, message string)
}

type sendFunc func(title, message string) error

func beeepSend(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Desktop sends notifications through the platform notification service. A
// burst of identical failures is collapsed by a rate limiter.
type Desktop struct {
	AppName string

	limiter *rate.Limiter
	send    sendFunc
	log     *slog.Logger
}

// NewDesktop allows at most one notification per interval, with a burst.
func NewDesktop(appName string, interval time.Duration, burst int, logger *slog.Logger) *Desktop {
	if logger == nil {
		logger = slog.Default()
	}
	if burst < 1 {
		burst = 1
	}
	return &Desktop{
		AppName: appName,
		limiter: rate.NewLimiter(rate.Every(interval), burst),
		send:    beeepSend,
		log:     logger.With("component", "notify"),
	}
}

// Notify shows message unless the rate limit is exhausted. Failures are
// logged; notifications are best effort.
func (d *Desktop) Notify(title, message string) {
	if !d.limiter.Allow() {
		d.log.Debug("notification suppressed", "title", title, "message", message)
		return
	}
	if title == "" {
		title = d.AppName
	}
	if err := d.send(title, message); err != nil {
		d.log.Warn("notification failed", "title", title, "error", err)
	}
}

// Log is a Notifier that only writes to the log.
type Log struct {
	Logger *slog.Logger
}

// Notify logs the message at warn level.
func (l Log) Notify(title, message string) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn(message, "title", title)
}
