package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"switchmonitor/internal/models"
)

type staticSource struct {
	snap models.Snapshot
	ch   chan models.Snapshot
}

func (s *staticSource) Latest() (models.Snapshot, bool) { return s.snap, true }

func (s *staticSource) Subscribe() (<-chan models.Snapshot, func()) { return s.ch, func() {} }

func simScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	screen.SetSize(120, 20)
	return screen
}

// uninitialised; newWithScreen calls Init
func rawSimScreen() tcell.SimulationScreen {
	return tcell.NewSimulationScreen("UTF-8")
}

func row(screen tcell.SimulationScreen, y int) string {
	cells, w, _ := screen.GetContents()
	var b strings.Builder
	for x := 0; x < w; x++ {
		c := cells[y*w+x]
		if len(c.Runes) == 0 {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(c.Runes[0])
	}
	return b.String()
}

func cellStyle(screen tcell.SimulationScreen, x, y int) tcell.Style {
	cells, w, _ := screen.GetContents()
	return cells[y*w+x].Style
}

func sampleSnapshot() models.Snapshot {
	since := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	old := since.Add(-time.Hour)
	return models.Snapshot{
		Timestamp: since.Add(10 * time.Second),
		Entries: []models.Entry{
			{Device: models.Device{IP: "10.0.0.1", Name: "core-sw1"}, Status: models.StatusUp},
			{Device: models.Device{IP: "10.0.0.2", Name: "core-sw2"}, Status: models.StatusDown, DownSince: &since, RecentlyDown: true},
			{Device: models.Device{IP: "10.0.0.3", Name: "access-sw3"}, Status: models.StatusDown, DownSince: &old},
		},
	}
}

func TestRender_Columns(t *testing.T) {
	screen := simScreen(t)
	defer screen.Fini()

	render(screen, sampleSnapshot())
	screen.Show()

	if !strings.Contains(row(screen, 0), title) {
		t.Fatalf("missing title: %q", row(screen, 0))
	}
	header := row(screen, 2)
	if !strings.HasPrefix(header[2:], "Reachable Devices") || !strings.HasPrefix(header[downColumn:], "Unreachable Devices") {
		t.Fatalf("unexpected header row %q", header)
	}

	first := row(screen, firstRow)
	if !strings.HasPrefix(first[2:], "core-sw1 (10.0.0.1)") {
		t.Fatalf("up column wrong: %q", first)
	}
	if !strings.HasPrefix(first[downColumn:], "core-sw2 (10.0.0.2) - Down Since: 12:00:00") {
		t.Fatalf("down column wrong: %q", first)
	}
	second := row(screen, firstRow+1)
	if !strings.HasPrefix(second[downColumn:], "access-sw3 (10.0.0.3) - Down Since: 11:00:00") {
		t.Fatalf("second down row wrong: %q", second)
	}

	if cellStyle(screen, downColumn, firstRow) != styleBlink {
		t.Fatalf("recently down device should use blink style")
	}
	if cellStyle(screen, downColumn, firstRow+1) != styleDown {
		t.Fatalf("old outage should use down style")
	}
	if cellStyle(screen, 2, firstRow) != styleUp {
		t.Fatalf("up device should use up style")
	}
}

func TestRun_QuitKey(t *testing.T) {
	screen := rawSimScreen()
	src := &staticSource{snap: sampleSnapshot(), ch: make(chan models.Snapshot)}
	ui, err := newWithScreen(screen, src)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- ui.Run(context.Background()) }()

	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("q did not stop the display")
	}
}

func TestRun_ContextCancel(t *testing.T) {
	screen := rawSimScreen()
	src := &staticSource{snap: sampleSnapshot(), ch: make(chan models.Snapshot)}
	ui, err := newWithScreen(screen, src)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ui.Run(ctx) }()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("cancel did not stop the display")
	}
}
