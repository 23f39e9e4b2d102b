package components

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/tui"
)

var modalCreatedHook func(*tview.Modal)

// alert replaces the screen with a modal coloured for status. Dismissing it
// gives the screen back to returnTo.
func alert(app *tui.App, status, title, message string, returnTo tview.Primitive) {
	color := tui.StatusColor(status)
	modal := tview.NewModal().
		SetText(tui.StatusSymbol(status) + " " + message + "\n\n[yellow]Press ENTER to continue[white]").
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) {
			app.SetRoot(returnTo, true).SetFocus(returnTo)
		})

	if modalCreatedHook != nil {
		modalCreatedHook(modal)
	}

	modal.SetBorder(true).
		SetTitle(" " + title + " ").
		SetTitleAlign(tview.AlignCenter).
		SetTitleColor(color).
		SetBorderColor(color).
		SetBackgroundColor(tcell.ColorBlack)
	app.SetRoot(modal, true).SetFocus(modal)
}
