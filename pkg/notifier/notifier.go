// Package notifier sends desktop notifications about watch-mode builds
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/jointcomp/jointcomp/pkg/logger"
)

// SendFunc delivers one notification
type SendFunc func(title, message string) error

// BuildNotifier handles build notifications
type BuildNotifier struct {
	enabled bool
	send    SendFunc
	logger  logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled bool
	// Send replaces the desktop notification, mainly for tests
	Send SendFunc
}

// New creates a new build notifier
func New(config Config, log logger.Logger) *BuildNotifier {
	if log == nil {
		log = logger.Discard()
	}
	send := config.Send
	if send == nil {
		send = func(title, message string) error {
			return beeep.Notify(title, message, "")
		}
	}
	return &BuildNotifier{
		enabled: config.Enabled,
		send:    send,
		logger:  log,
	}
}

// NotifyBuildSuccess notifies that a run succeeded
func (n *BuildNotifier) NotifyBuildSuccess(targets int, duration time.Duration) {
	n.notify("jointcomp: build succeeded",
		fmt.Sprintf("%d target(s) built in %s", targets, formatDuration(duration)))
}

// NotifyBuildFailure notifies that a run failed
func (n *BuildNotifier) NotifyBuildFailure(err error) {
	n.notify("jointcomp: build failed", err.Error())
}

func (n *BuildNotifier) notify(title, message string) {
	if !n.enabled {
		return
	}
	if err := n.send(title, message); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
