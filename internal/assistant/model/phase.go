package model

// TurnPhase is the controller's current activity. At most one non-idle phase
// is active at a time.
type TurnPhase string

const (
	PhaseIdle             TurnPhase = "idle"
	PhaseListening        TurnPhase = "listening"
	PhaseAwaitingResponse TurnPhase = "awaiting_response"
	PhaseSpeaking         TurnPhase = "speaking"
)

func (p TurnPhase) String() string {
	return string(p)
}

// Busy reports whether input (typed or spoken) must wait for this phase to end.
func (p TurnPhase) Busy() bool {
	return p == PhaseListening || p == PhaseAwaitingResponse
}
