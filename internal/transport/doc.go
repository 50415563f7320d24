// Package transport carries session frames between a jam client and the relay.
//
// A [Transport] is a one-shot connection: [Transport.Connect] starts dialing and returns immediately, and the outcome
// arrives as a synthesized [EventConnect] or [EventConnectError] event. Once connected, every inbound frame is delivered
// to the handlers registered for its event name, and a dropped connection produces a single [EventDisconnect]. Nothing
// is emitted after [Transport.Disconnect] returns.
//
// Frames are JSON objects of the form {"event": name, "data": payload}. [Payload] is the union of the data fields both
// sides exchange.
package transport
