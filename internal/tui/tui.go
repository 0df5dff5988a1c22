// Package tui renders the live two-column device view in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"switchmonitor/internal/models"
)

const (
	title       = "Live Switch Monitoring"
	downColumn  = 40
	firstRow    = 3
	ruleWidth   = 80
	redrawEvery = time.Second
)

var (
	styleTitle  = tcell.StyleDefault.Bold(true)
	styleHeader = tcell.StyleDefault.Underline(true)
	styleUp     = tcell.StyleDefault.Foreground(tcell.ColorGreen).Background(tcell.ColorBlack)
	styleDown   = tcell.StyleDefault.Foreground(tcell.ColorRed).Background(tcell.ColorBlack)
	styleBlink  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Background(tcell.ColorBlack).Blink(true)
	styleFooter = tcell.StyleDefault.Dim(true)
)

// Source provides the snapshots to draw.
type Source interface {
	Latest() (models.Snapshot, bool)
	Subscribe() (<-chan models.Snapshot, func())
}

// UI owns the terminal while running.
type UI struct {
	screen tcell.Screen
	source Source
}

// New takes over the terminal.
func New(source Source) (*UI, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("create screen: %w", err)
	}
	return newWithScreen(screen, source)
}

func newWithScreen(screen tcell.Screen, source Source) (*UI, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	screen.HideCursor()
	screen.Clear()
	return &UI{screen: screen, source: source}, nil
}

// Run redraws on every new snapshot and once per second until ctx is done
// or the user presses q. It restores the terminal before returning.
func (u *UI) Run(ctx context.Context) error {
	defer u.screen.Fini()

	updates, cancel := u.source.Subscribe()
	defer cancel()

	events := make(chan tcell.Event, 8)
	go func() {
		for {
			ev := u.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	snap, _ := u.source.Latest()
	u.draw(snap)

	ticker := time.NewTicker(redrawEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap = <-updates:
			u.draw(snap)
		case <-ticker.C:
			u.draw(snap)
		case ev := <-events:
			switch e := ev.(type) {
			case *tcell.EventKey:
				if isQuit(e) {
					return nil
				}
			case *tcell.EventResize:
				u.screen.Sync()
				u.draw(snap)
			}
		}
	}
}

func isQuit(e *tcell.EventKey) bool {
	if e.Key() == tcell.KeyCtrlC || e.Key() == tcell.KeyEscape {
		return true
	}
	return e.Key() == tcell.KeyRune && (e.Rune() == 'q' || e.Rune() == 'Q')
}

func (u *UI) draw(snap models.Snapshot) {
	render(u.screen, snap)
	u.screen.Show()
}

func render(screen tcell.Screen, snap models.Snapshot) {
	screen.Clear()

	drawText(screen, 2, 0, styleTitle, title)
	drawText(screen, 0, 1, tcell.StyleDefault, strings.Repeat("=", ruleWidth))
	drawText(screen, 2, 2, styleHeader, "Reachable Devices")
	drawText(screen, downColumn, 2, styleHeader, "Unreachable Devices")

	up, down := snap.Split()
	for i, e := range up {
		drawText(screen, 2, firstRow+i, styleUp, fmt.Sprintf("%s (%s)", e.Device.Name, e.Device.IP))
	}
	for i, e := range down {
		style := styleDown
		if e.RecentlyDown {
			style = styleBlink
		}
		drawText(screen, downColumn, firstRow+i, style, downLine(e))
	}

	if !snap.Timestamp.IsZero() {
		_, h := screen.Size()
		drawText(screen, 2, h-1, styleFooter, fmt.Sprintf("q: quit   updated %s", snap.Timestamp.Local().Format("15:04:05")))
	}
}

func downLine(e models.Entry) string {
	since := "--:--:--"
	if e.DownSince != nil {
		since = e.DownSince.Local().Format("15:04:05")
	}
	return fmt.Sprintf("%s (%s) - Down Since: %s", e.Device.Name, e.Device.IP, since)
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	w, h := screen.Size()
	if y < 0 || y >= h {
		return
	}
	for _, r := range text {
		if x >= w {
			return
		}
		screen.SetContent(x, y, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
}
