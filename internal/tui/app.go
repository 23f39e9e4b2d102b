// Package tui holds the terminal UI used by the interactive prompts.
package tui

import (
	"context"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// App is a themed tview application that can be bound to a context.
type App struct {
	*tview.Application

	// test seams
	stopHook func()
	runHook  func() error
}

// NewApp creates a themed application.
func NewApp() *App {
	applyTheme()
	app := &App{Application: tview.NewApplication()}
	app.EnableMouse(true)
	return app
}

func applyTheme() {
	tview.Styles.PrimitiveBackgroundColor = tcell.ColorBlack
	tview.Styles.ContrastBackgroundColor = tcell.ColorBlack
	tview.Styles.MoreContrastBackgroundColor = PanelDark
	tview.Styles.BorderColor = Accent
	tview.Styles.TitleColor = Accent
	tview.Styles.GraphicsColor = Accent
	tview.Styles.PrimaryTextColor = tcell.ColorWhite
	tview.Styles.SecondaryTextColor = TextLight
	tview.Styles.InverseTextColor = tcell.ColorBlack
}

// Stop stops the application. Safe on a nil or never-run App.
func (a *App) Stop() {
	if a == nil {
		return
	}
	if a.stopHook != nil {
		a.stopHook()
		return
	}
	if a.Application != nil {
		a.Application.Stop()
	}
}

// RunContext shows root with focus on focus and blocks until the
// application stops. Cancelling ctx stops it.
func (a *App) RunContext(ctx context.Context, root, focus tview.Primitive) error {
	release := context.AfterFunc(ctx, a.Stop)
	defer release()

	a.SetRoot(root, true).SetFocus(focus)
	if a.runHook != nil {
		return a.runHook()
	}
	return a.Run()
}

// Frame stacks rows vertically inside an accent-bordered box titled
// title. A row with size 0 takes the remaining height.
func Frame(title string, rows ...FrameRow) *tview.Flex {
	flex := tview.NewFlex().SetDirection(tview.FlexRow)
	for _, r := range rows {
		proportion := 0
		if r.Size == 0 {
			proportion = 1
		}
		flex.AddItem(r.Item, r.Size, proportion, r.Focus)
	}
	flex.SetBorder(true).
		SetTitle(" " + title + " ").
		SetTitleAlign(tview.AlignCenter).
		SetTitleColor(Accent).
		SetBorderColor(Accent)
	return flex
}

// FrameRow is one row of Frame.
type FrameRow struct {
	Item  tview.Primitive
	Size  int
	Focus bool
}
