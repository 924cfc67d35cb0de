package switcher

import (
	"context"
)

// Window is the host of the page: location, session history, scrolling and native navigation.
// dom.Window implements it.
type Window interface {
	// Location returns the URL of the active history entry.
	Location() string
	// PushState adds a history entry without loading anything.
	PushState(url string)
	// ScrollTo moves the viewport to the given position.
	ScrollTo(x, y int)
	// Assign performs a full native navigation, like setting location.href.
	Assign(ctx context.Context, url string)
	// AddEventListener registers a handler for dom.EventLoad or dom.EventPopState.
	AddEventListener(event string, fn func())
}
