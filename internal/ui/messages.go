package ui

import (
	"time"

	"github.com/cwbudde/algo-gate/event"
)

// EventMsg carries one gate event from the bus
type EventMsg struct {
	Event event.Event
}

// FrameMsg triggers a redraw so hit flashes fade without new events
type FrameMsg time.Time
