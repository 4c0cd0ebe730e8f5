package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is the decoded client message.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick  Event = "tick"
	EventError Event = "error"
	EventPong  Event = "pong"
	EventEnded Event = "ended"
)

// TickResponse carries the attempt's remaining window time. Bounded is false
// for untimed assessments, in which case RemainingSeconds is meaningless.
type TickResponse struct {
	Event            Event   `json:"event"`
	RemainingSeconds float64 `json:"remaining_seconds"`
	Bounded          bool    `json:"bounded"`
}

// EndedResponse tells the client the attempt left the in-progress state.
type EndedResponse struct {
	Event  Event  `json:"event"`
	Reason string `json:"reason"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
