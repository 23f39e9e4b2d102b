// Package wizard contains the full-screen interactive flows.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/credentials"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/tui"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/tui/components"
)

// Field labels of the credentials form.
const (
	LabelUsername = "Username"
	LabelPassword = "Password"
	LabelConfirm  = "Confirm password"
)

// ErrCredentialsCancelled is returned when the operator closes the form.
var ErrCredentialsCancelled = errors.New("credentials entry cancelled")

var credentialsRunner = func(ctx context.Context, app *tui.App, root tview.Primitive, form *components.Form) error {
	return app.RunContext(ctx, root, form)
}

// CredentialsForm asks for API credentials in a full-screen form.
type CredentialsForm struct {
	APIURL string
}

func credentialFromValues(values map[string]string) (credentials.Credential, error) {
	user := strings.TrimSpace(values[LabelUsername])
	pass := values[LabelPassword]
	if user == "" {
		return credentials.Credential{}, errors.New("username cannot be empty")
	}
	if pass == "" {
		return credentials.Credential{}, errors.New("password cannot be empty")
	}
	if pass != values[LabelConfirm] {
		return credentials.Credential{}, errors.New("passwords do not match")
	}
	return credentials.Credential{Username: user, Password: pass}, nil
}

// PromptCredentials shows the form and returns what was entered.
func (w CredentialsForm) PromptCredentials(ctx context.Context, defaultUser string) (credentials.Credential, error) {
	if err := ctx.Err(); err != nil {
		return credentials.Credential{}, err
	}
	app := tui.NewApp()

	var (
		result    credentials.Credential
		submitted bool
	)

	form := components.NewForm(app)
	form.AddInputFieldWithValidation(LabelUsername, defaultUser, 32)
	form.AddPasswordField(LabelPassword, 32)
	form.AddPasswordField(LabelConfirm, 32)
	form.SetOnSubmit(func(values map[string]string) error {
		cred, err := credentialFromValues(values)
		if err != nil {
			return err
		}
		result, submitted = cred, true
		return nil
	})
	form.AddSubmitButton("Save")
	form.AddCancelButton("Cancel")

	header := tview.NewTextView().
		SetText(fmt.Sprintf("LoadAvgCheck Manager\n\nCredentials for [yellow]%s[white]\nThey are tested before being stored.", w.APIURL)).
		SetTextColor(tui.TextLight).
		SetDynamicColors(true)

	nav := tview.NewTextView().
		SetText("[yellow]TAB[white] next field | [yellow]ENTER[white] select | [yellow]ESC[white] cancel").
		SetTextColor(tcell.ColorWhite).
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	layout := tui.Frame("FMOS API Credentials",
		tui.FrameRow{Item: header, Size: 5},
		tui.FrameRow{Item: form.Form, Focus: true},
		tui.FrameRow{Item: nav, Size: 1},
	)
	form.SetParentView(layout)

	if err := credentialsRunner(ctx, app, layout, form); err != nil {
		return credentials.Credential{}, fmt.Errorf("credentials form: %w", err)
	}
	if ctx.Err() != nil {
		return credentials.Credential{}, ctx.Err()
	}
	if !submitted {
		return credentials.Credential{}, ErrCredentialsCancelled
	}
	return result, nil
}
