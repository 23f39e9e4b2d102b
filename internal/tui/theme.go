package tui

import (
	"github.com/gdamore/tcell/v2"
)

// Palette
var (
	Accent    = tcell.NewRGBColor(200, 16, 46)   // #C8102E
	PanelDark = tcell.NewRGBColor(40, 40, 40)    // #282828
	TextLight = tcell.NewRGBColor(200, 200, 200) // #C8C8C8

	SuccessGreen  = tcell.NewRGBColor(34, 197, 94)  // #22C55E
	ErrorRed      = tcell.NewRGBColor(239, 68, 68)  // #EF4444
	WarningYellow = tcell.NewRGBColor(234, 179, 8)  // #EAB308
	InfoBlue      = tcell.NewRGBColor(59, 130, 246) // #3B82F6

	LightGray = tcell.ColorLightGray
)

// Symbols shared by the TUI and the plain status report.
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolInfo    = "ℹ"
	SymbolBullet  = "•"
)

// Status keys understood by StatusColor and StatusSymbol.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusWarning = "warning"
	StatusInfo    = "info"
)

// StatusColor returns the colour for a status key.
func StatusColor(status string) tcell.Color {
	switch status {
	case StatusOK, "success":
		return SuccessGreen
	case StatusError, "failed":
		return ErrorRed
	case StatusWarning:
		return WarningYellow
	case StatusInfo, "pending":
		return InfoBlue
	default:
		return LightGray
	}
}

// StatusSymbol returns the symbol for a status key.
func StatusSymbol(status string) string {
	switch status {
	case StatusOK, "success":
		return SymbolSuccess
	case StatusError, "failed":
		return SymbolError
	case StatusWarning:
		return SymbolWarning
	case StatusInfo, "pending":
		return SymbolInfo
	default:
		return SymbolBullet
	}
}
