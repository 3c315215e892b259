package bot

import "context"

// Action is an inline button attached to an outbound message. ID comes back
// verbatim in OnButton when the recipient presses it.
type Action struct {
	Label string
	ID    string
}

// Gateway is the outbound half of the message transport. The Telegram
// adapter implements it; tests substitute a recorder.
type Gateway interface {
	SendText(ctx context.Context, userID, text string, actions []Action) error
	SendPhoto(ctx context.Context, userID, photoRef, caption string, actions []Action) error
}

// Identity is who an inbound event came from, as the transport reports it.
type Identity struct {
	ID   string
	Name string
}
