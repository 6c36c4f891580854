package presence

// Kind classifies a voice-state change once, so handlers dispatch on a
// closed set instead of re-testing channel pairs.
type Kind int

const (
	NoOp Kind = iota
	Join
	Leave
	Switch
)

func (k Kind) String() string {
	switch k {
	case Join:
		return "join"
	case Leave:
		return "leave"
	case Switch:
		return "switch"
	default:
		return "noop"
	}
}

// Transition is a single user's movement between voice channels.
// Empty channel IDs mean "not in any channel".
type Transition struct {
	Kind Kind
	From string
	To   string
}

// Classify derives the transition variant from the previous and next
// channel of a voice-state update. Identical channels are an SDK artifact
// (mute/deaf toggles arrive as state updates) and classify as NoOp.
func Classify(prev, next string) Transition {
	switch {
	case prev == next:
		return Transition{Kind: NoOp, From: prev, To: next}
	case prev == "" && next != "":
		return Transition{Kind: Join, To: next}
	case prev != "" && next == "":
		return Transition{Kind: Leave, From: prev}
	default:
		return Transition{Kind: Switch, From: prev, To: next}
	}
}
