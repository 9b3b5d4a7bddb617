// Package codec defines the contract between netsync's core and the
// emulator-plugin glue that knows how to turn a particular console's
// controller state into the wire KeyState fields and back. netsync never
// looks inside Buttons itself; it is opaque.
package codec

import "github.com/openlockstep/netsync/wire"

// Buttons is the codec contract mentioned in the design notes: a two-method
// strategy for encoding and decoding a console-specific button
// representation to and from the wire KeyState record. It is intentionally
// parameterized rather than expressed as an interface hierarchy -- there is
// exactly one thing it does.
type Buttons[B any] interface {
	// Encode fills in the button-specific fields of state (Buttons, XAxis,
	// YAxis, Reserved1, Reserved2). ConsoleID, Port and FrameNumber are
	// filled in by the caller.
	Encode(buttons B, state *wire.KeyState) error

	// Decode reconstructs a B from the button-specific fields of state.
	Decode(state wire.KeyState) (B, error)
}
