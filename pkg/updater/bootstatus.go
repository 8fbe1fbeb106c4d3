package updater

// BootStatus is the orchestrator's coarse-grained lifecycle variable.
type BootStatus int

const (
	Disconnected BootStatus = iota
	Connected
	InBootMode
	Transfer
	Verifying
	Completed
	Error
)

func (s BootStatus) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case InBootMode:
		return "in_boot_mode"
	case Transfer:
		return "transfer"
	case Verifying:
		return "verifying"
	case Completed:
		return "completed"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}
