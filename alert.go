package kosketus

type (
	// Alert is a passive notification from the engine: something went wrong
	// (or is worth knowing) but interaction continues. There is no other
	// user-facing error surface; the engine prefers degrading to silence over
	// halting.
	Alert struct {
		Name     string // stable identifier, e.g. "AssetLoad"
		Message  string
		Priority AlertPriority
	}

	AlertPriority int
)

const (
	Info AlertPriority = iota
	Warning
	Error
)

func (p AlertPriority) String() string {
	switch p {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "unknown"
}
