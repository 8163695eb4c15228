package command

// Transport identifies which channel carried a command into the core.
type Transport int

const (
	TransportReliable Transport = iota
	TransportLossy
)

func (t Transport) String() string {
	switch t {
	case TransportReliable:
		return "reliable"
	case TransportLossy:
		return "lossy"
	default:
		return "unknown"
	}
}

// Tier classifies which transports may legally carry a command.
//
// NeverLossy covers state creation/deletion, queries, transport control
// and undo/redo: anything whose silent loss or duplication is not
// corrected by a later submission. LossyEligible is reserved for
// idempotent last-write-wins setters and trigger-style fires, where a
// dropped datagram is repaired by the next one that lands.
type Tier int

const (
	NeverLossy Tier = iota
	LossyEligible
)

func (t Tier) String() string {
	switch t {
	case NeverLossy:
		return "never_lossy"
	case LossyEligible:
		return "lossy_eligible"
	default:
		return "unknown"
	}
}

// Command is one fully decoded wire message awaiting execution.
type Command struct {
	Name      string
	Params    map[string]any
	Transport Transport
}

// Handler executes one command against host state. Handlers run only on
// the execution serializer's consumer goroutine.
type Handler func(params map[string]any) (any, error)

// Descriptor is one immutable registry entry.
type Descriptor struct {
	Name    string
	Tier    Tier
	Handler Handler
}
