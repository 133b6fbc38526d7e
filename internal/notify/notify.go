// Package notify delivers user-facing notifications. Delivery is
// fire-and-forget from the core's perspective; a failed notification is
// logged and dropped.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/arjenw/portward/internal/port"
)

// Notifier accepts (title, body) pairs.
type Notifier interface {
	Notify(title, body string)
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Notify(string, string) {}

// LogNotifier writes notifications to the structured log, used when no
// desktop notification mechanism is available or wanted.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(title, body string) {
	n.Log.Info().Str("title", title).Str("body", body).Msg("notification")
}

// OSANotifier posts macOS notification center banners via osascript.
type OSANotifier struct {
	runner port.CmdRunner
	log    zerolog.Logger
}

// NewOSANotifier creates a notifier backed by osascript.
func NewOSANotifier(runner port.CmdRunner, log zerolog.Logger) *OSANotifier {
	return &OSANotifier{
		runner: runner,
		log:    log.With().Str("component", "notify").Logger(),
	}
}

func (n *OSANotifier) Notify(title, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	script := fmt.Sprintf("display notification %q with title %q", body, title)
	if _, err := n.runner.Run(ctx, "osascript", "-e", script); err != nil {
		n.log.Debug().Err(err).Msg("notification delivery failed")
	}
}
