package staking

import (
	"log/slog"

	"github.com/invarch/daostake/internal/lib/misc"
)

type NotificationLevel int

const (
	NotifyInfo NotificationLevel = iota
	NotifySuccess
	NotifyError
)

// Notification is a transient user facing message about a transaction.
type Notification struct {
	Level   NotificationLevel
	Account string
	Kind    string
	Message string
	// Terminal is set on the single notification sent when a transaction reaches a final state.
	Terminal bool
	Err      error
}

type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to the logger.
type LogNotifier struct {
	Log *slog.Logger
}

func (l LogNotifier) Notify(n Notification) {
	switch n.Level {
	case NotifyError:
		if n.Err != nil {
			misc.Errorf(l.Log, "[%s] %s: %v", n.Kind, n.Message, n.Err)
			return
		}
		misc.Errorf(l.Log, "[%s] %s", n.Kind, n.Message)
	default:
		misc.Infof(l.Log, "[%s] %s", n.Kind, n.Message)
	}
}
