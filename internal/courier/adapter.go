// Package courier bridges the officiant to chat platforms (Telegram,
// Discord). Adapters translate platform traffic into Events and render
// Outbound messages; the Router owns all bot behavior.
package courier

import (
	"context"
	"image"
)

// Adapter is the interface platform-specific implementations must satisfy.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound events. The channel is closed
	// when the context is cancelled or the adapter is closed. Listen must
	// only be called after Connect.
	Listen(ctx context.Context) (<-chan Event, error)

	// Send delivers a message and returns an opaque reference to it,
	// usable later with Edit. The reference format is platform-specific.
	Send(ctx context.Context, msg Outbound) (surfaceRef string, err error)

	// Edit replaces the text and buttons of a previously sent message.
	Edit(ctx context.Context, chatID int64, surfaceRef string, msg Outbound) error

	// SendPhoto delivers a PNG with a caption.
	SendPhoto(ctx context.Context, chatID int64, pngData []byte, caption string) error

	// Alert shows a prominent notice to the user who pressed a button.
	Alert(ctx context.Context, pressID, text string) error

	// Ack dismisses a button press, optionally with a short toast.
	Ack(ctx context.Context, pressID, text string) error

	// Avatar fetches and decodes a user's profile picture. Returns
	// (nil, nil) when the user has none; the renderer substitutes a
	// placeholder.
	Avatar(ctx context.Context, userID int64) (image.Image, error)

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// EventKind classifies an inbound event.
type EventKind int

const (
	// EventMessage is ordinary chat activity, observed for the roster
	// and message counters.
	EventMessage EventKind = iota
	// EventCommand is a bot command with parsed arguments.
	EventCommand
	// EventPress is an inline button press.
	EventPress
)

// Event is a platform-neutral inbound message, command, or button press.
type Event struct {
	Kind     EventKind
	Platform string // e.g. "telegram", "discord"
	ChatID   int64  // the scope all relationship state is keyed by
	Private  bool   // direct chat rather than a group

	UserID    int64 // acting identity, platform-assigned
	Handle    string
	FirstName string
	LastName  string
	IsBot     bool

	Command string   // command name without the leading slash
	Args    []string // command arguments
	Text    string   // raw message text

	PressID    string // platform handle for Ack/Alert on a button press
	PressData  string // opaque button payload
	SurfaceRef string // reference to the message the button was attached to
}

// Button is one inline button.
type Button struct {
	Label string
	Data  string
}

// Outbound is a message to send or an edit to apply.
type Outbound struct {
	ChatID  int64
	Text    string
	Buttons [][]Button // rows of buttons; nil strips any existing buttons on edit
}
