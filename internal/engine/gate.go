package engine

// Gate is the update readiness state computed at the start of every tick.
type Gate int

// Gate values. Only GateReady lets a tick start a rescan.
const (
	GateReady Gate = iota
	GateInvalidRepo
	GateSwitchingContext
	GateCompiling
	GateIndexing
	GateBusy
)

func (g Gate) String() string {
	switch g {
	case GateReady:
		return "ready"
	case GateInvalidRepo:
		return "invalid-repo"
	case GateSwitchingContext:
		return "switching-context"
	case GateCompiling:
		return "compiling"
	case GateIndexing:
		return "indexing"
	case GateBusy:
		return "updating"
	default:
		return "unknown"
	}
}

// HostSignals reports activity of the surrounding process that should defer
// rescans.
type HostSignals interface {
	SwitchingContext() bool
	Compiling() bool
	Indexing() bool
}

// NoHost is a HostSignals that never reports activity.
type NoHost struct{}

func (NoHost) SwitchingContext() bool { return false }
func (NoHost) Compiling() bool        { return false }
func (NoHost) Indexing() bool         { return false }

func computeGate(validRepo bool, host HostSignals, updating bool) Gate {
	if !validRepo {
		return GateInvalidRepo
	}
	if host.SwitchingContext() {
		return GateSwitchingContext
	}
	if host.Compiling() {
		return GateCompiling
	}
	if host.Indexing() {
		return GateIndexing
	}
	if updating {
		return GateBusy
	}
	return GateReady
}
