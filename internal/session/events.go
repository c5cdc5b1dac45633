package session

// Event is a workspace or host occurrence the lifecycle manager reacts to.
// Events are dispatched through a single channel and handled one at a time
// by the manager's event loop, so handlers never race each other.
type Event interface {
	event()
}

// DocumentOpened signals that a relevant document was opened (or appeared)
// at Path. The manager resolves the outermost enclosing root and ensures a
// client runs for it.
type DocumentOpened struct {
	Path string
}

// FolderRemoved signals that the workspace root at Path was removed. The
// client for that root, if any, is stopped and deregistered.
type FolderRemoved struct {
	Path string
}

// ConfigChanged signals a change to install or run settings. The manager
// does not hot-reload; it surfaces a reload-required notice.
type ConfigChanged struct{}

// Toggle enables or disables the tool globally. Disabling stops every
// client; enabling runs a fresh install-and-start sequence.
type Toggle struct {
	Enabled bool
}

func (DocumentOpened) event() {}
func (FolderRemoved) event()  {}
func (ConfigChanged) event()  {}
func (Toggle) event()         {}
