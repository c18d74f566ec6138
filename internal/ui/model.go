// Package ui provides the Bubbletea terminal meters for gatemon
package ui

import (
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cwbudde/algo-gate/dsp/core"
	"github.com/cwbudde/algo-gate/event"
)

const (
	floorDB    = -60.0
	hitFlash   = 250 * time.Millisecond
	frameEvery = 50 * time.Millisecond
)

// SourceMeter tracks the display state of one logical sound
type SourceMeter struct {
	ID      string
	Level   float64 // smoothed RMS, linear
	PeakDB  float64 // highest level seen so far
	Bands   []float64
	Hits    int
	LastHit time.Time
}

// LevelDB returns the level in dBFS, floored for display
func (s SourceMeter) LevelDB() float64 {
	return levelDB(s.Level)
}

func levelDB(rms float64) float64 {
	if rms <= 0 {
		return floorDB
	}
	return core.Clamp(core.LinearToDB(rms), floorDB, 0)
}

// Model is the Bubbletea model for the meter display
type Model struct {
	Title   string
	Sources []SourceMeter

	// Channel for receiving events from the gate bus
	Events <-chan event.Event

	Now func() time.Time

	// Terminal dimensions
	Width  int
	Height int
}

// NewModel creates a meter display fed by events
func NewModel(title string, events <-chan event.Event) Model {
	return Model{
		Title:  title,
		Events: events,
		Now:    time.Now,
	}
}

// Init starts listening for events and schedules the first frame
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.Events), nextFrame())
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case FrameMsg:
		return m, nextFrame()

	case EventMsg:
		m = m.apply(msg.Event)
		// Listen for the next event
		return m, waitForEvent(m.Events)
	}

	return m, nil
}

// apply folds one event into the meter of its source
func (m Model) apply(e event.Event) Model {
	if e == nil {
		return m
	}

	i := slices.IndexFunc(m.Sources, func(s SourceMeter) bool { return s.ID == e.Source() })
	if i < 0 {
		m.Sources = append(m.Sources, SourceMeter{ID: e.Source(), PeakDB: floorDB})
		slices.SortFunc(m.Sources, func(a, b SourceMeter) int { return strings.Compare(a.ID, b.ID) })
		i = slices.IndexFunc(m.Sources, func(s SourceMeter) bool { return s.ID == e.Source() })
	}

	s := &m.Sources[i]
	switch e := e.(type) {
	case event.LevelEvent:
		s.Level = e.RMS
		s.PeakDB = max(s.PeakDB, levelDB(e.RMS))
	case event.SpectrumEvent:
		s.Bands = e.Bands
	case event.HitEvent:
		s.Hits++
		s.LastHit = e.Time
	}

	return m
}

// View renders the UI
func (m Model) View() string {
	return renderMeters(m)
}

// flashing reports whether the source had a hit recently
func (m Model) flashing(s SourceMeter) bool {
	if s.LastHit.IsZero() {
		return false
	}
	return m.Now().Sub(s.LastHit) < hitFlash
}

// waitForEvent creates a command that waits for the next bus event
func waitForEvent(events <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		return EventMsg{Event: <-events}
	}
}

func nextFrame() tea.Cmd {
	return tea.Tick(frameEvery, func(t time.Time) tea.Msg {
		return FrameMsg(t)
	})
}
