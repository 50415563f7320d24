// Package ui implements the live session viewer using bubbletea's Elm architecture.
//
// The viewer shows the connection state, the roster, the shared playlist and the recommendations of one session. It
// never changes the session itself: removing a track or queueing a recommendation sends a command over the channel,
// and the result appears once the relay confirms it and the reconciler publishes the change.
//
// The (view) [Model] implements Init/Update/View, receiving messages via the [Msg] union type. State changes arrive
// from [session.Reconciler.Subscribe]; the connection state is polled on a short tick.
//
// Keyboard navigation uses vim-style bindings (j/k, tab, x, a, r, q) with contextual help displayed via
// charmbracelet/bubbles/help.
package ui
