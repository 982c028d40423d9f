package ws

const (
	// client - server
	MsgPing = "ping"

	// server - client
	MsgReady = "ready"
	MsgPong  = "pong"
)

// Message is the envelope for every frame the server sends.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}
