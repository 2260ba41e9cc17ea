package session

// Notifier surfaces member-facing session events to the presentation layer.
// Implementations render toasts, terminal lines, or nothing at all.
type Notifier interface {
	MemberJoined(username string)
	MemberLeft(username string)
	MicChanged(username string, on bool)
	ViewChanged(username string, whiteboard bool)
	SessionError(err error)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) MemberJoined(string)      {}
func (NopNotifier) MemberLeft(string)        {}
func (NopNotifier) MicChanged(string, bool)  {}
func (NopNotifier) ViewChanged(string, bool) {}
func (NopNotifier) SessionError(error)       {}
