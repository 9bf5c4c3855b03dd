package websocket

// ActionMessageCreated is pushed to admin clients when a contact message is stored.
const ActionMessageCreated = "message.created"

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}
