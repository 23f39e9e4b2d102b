// Package components contains themed widgets for the prompts.
package components

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/tui"
)

// ValidatorFunc validates one field value.
type ValidatorFunc func(value string) error

// Form wraps tview.Form with validation and submit/cancel handling.
type Form struct {
	*tview.Form
	app        *tui.App
	order      []string
	validators map[string][]ValidatorFunc
	onSubmit   func(values map[string]string) error
	onCancel   func()
	parentView tview.Primitive
}

// NewForm creates a themed form.
func NewForm(app *tui.App) *Form {
	form := tview.NewForm().
		SetButtonsAlign(tview.AlignCenter).
		SetButtonBackgroundColor(tui.Accent).
		SetButtonTextColor(tcell.ColorWhite).
		SetLabelColor(tui.TextLight).
		SetFieldBackgroundColor(tui.PanelDark).
		SetFieldTextColor(tcell.ColorWhite)

	return &Form{
		Form:       form,
		app:        app,
		validators: make(map[string][]ValidatorFunc),
	}
}

func (f *Form) register(label string, validators []ValidatorFunc) {
	f.order = append(f.order, label)
	f.validators[label] = validators
}

// AddInputFieldWithValidation adds a text field.
func (f *Form) AddInputFieldWithValidation(label, value string, fieldWidth int, validators ...ValidatorFunc) *Form {
	f.register(label, validators)
	f.Form.AddInputField(label, value, fieldWidth, nil, nil)
	return f
}

// AddPasswordField adds a masked field.
func (f *Form) AddPasswordField(label string, fieldWidth int, validators ...ValidatorFunc) *Form {
	f.register(label, validators)
	f.Form.AddPasswordField(label, "", fieldWidth, '*', nil)
	return f
}

func (f *Form) SetOnSubmit(handler func(values map[string]string) error) *Form {
	f.onSubmit = handler
	return f
}

func (f *Form) SetOnCancel(handler func()) *Form {
	f.onCancel = handler
	return f
}

// SetParentView sets the layout errors return to.
func (f *Form) SetParentView(parent tview.Primitive) *Form {
	f.parentView = parent
	return f
}

// AddSubmitButton adds a button that runs Submit.
func (f *Form) AddSubmitButton(label string) *Form {
	f.Form.AddButton(label, func() { f.Submit() })
	return f
}

// AddCancelButton adds a button that runs Cancel.
func (f *Form) AddCancelButton(label string) *Form {
	f.Form.AddButton(label, f.Cancel)
	f.Form.SetCancelFunc(f.Cancel)
	return f
}

// Submit validates the fields and runs the submit handler. The app stops
// only on success; it reports whether it did.
func (f *Form) Submit() bool {
	values := f.GetFormValues()
	if err := f.ValidateAll(values); err != nil {
		f.showError("Validation Error", err)
		return false
	}
	if f.onSubmit != nil {
		if err := f.onSubmit(values); err != nil {
			f.showError("Error", err)
			return false
		}
	}
	f.app.Stop()
	return true
}

// Cancel runs the cancel handler and stops the app.
func (f *Form) Cancel() {
	if f.onCancel != nil {
		f.onCancel()
	}
	f.app.Stop()
}

func (f *Form) showError(title string, err error) {
	var returnTo tview.Primitive = f.Form
	if f.parentView != nil {
		returnTo = f.parentView
	}
	alert(f.app, tui.StatusError, title, err.Error(), returnTo)
}

// GetFormValues returns the text of every input field by label.
func (f *Form) GetFormValues() map[string]string {
	values := make(map[string]string)
	for i := 0; i < f.Form.GetFormItemCount(); i++ {
		if input, ok := f.Form.GetFormItem(i).(*tview.InputField); ok {
			values[input.GetLabel()] = input.GetText()
		}
	}
	return values
}

// SetText sets the value of the field labelled label.
func (f *Form) SetText(label, value string) bool {
	input, ok := f.Form.GetFormItemByLabel(label).(*tview.InputField)
	if !ok {
		return false
	}
	input.SetText(value)
	return true
}

// ValidateAll runs the validators in field order and returns the first
// failure.
func (f *Form) ValidateAll(values map[string]string) error {
	for _, label := range f.order {
		for _, validate := range f.validators[label] {
			if err := validate(values[label]); err != nil {
				return err
			}
		}
	}
	return nil
}
