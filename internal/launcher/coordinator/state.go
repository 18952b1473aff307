package coordinator

import "github.com/sjzar/xivlauncher/internal/model"

type State int

const (
	Idle State = iota
	Authenticating
	Provisioning
	Launching
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Authenticating:
		return "authenticating"
	case Provisioning:
		return "provisioning"
	case Launching:
		return "launching"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Event is one stage notification. Text is meant for display.
type Event struct {
	ProfileID string
	State     State
	Text      string
	Err       error
	Process   *model.Process
}

type Notifier func(Event)
