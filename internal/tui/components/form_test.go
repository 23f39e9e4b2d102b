package components

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unsafe"

	"github.com/rivo/tview"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/tui"
)

func captureModal(t *testing.T, fn func(app *tui.App)) *tview.Modal {
	t.Helper()
	original := modalCreatedHook
	var captured *tview.Modal
	modalCreatedHook = func(m *tview.Modal) { captured = m }
	t.Cleanup(func() { modalCreatedHook = original })

	fn(tui.NewApp())
	if captured == nil {
		t.Fatalf("modal not captured")
	}
	return captured
}

func modalText(modal *tview.Modal) string {
	return reflect.ValueOf(modal).Elem().FieldByName("text").String()
}

func modalDone(modal *tview.Modal) func(int, string) {
	field := reflect.ValueOf(modal).Elem().FieldByName("done")
	ptr := unsafe.Pointer(field.UnsafeAddr())
	return *(*func(int, string))(ptr)
}

type recordingPrimitive struct {
	*tview.Box
	focused bool
}

func (r *recordingPrimitive) Focus(func(p tview.Primitive)) { r.focused = true }
func (r *recordingPrimitive) Blur()                         { r.focused = false }

func notEmpty(msg string) ValidatorFunc {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return errors.New(msg)
		}
		return nil
	}
}

func TestValidateAllRunsInFieldOrder(t *testing.T) {
	form := NewForm(tui.NewApp())
	form.AddInputFieldWithValidation("Username", "", 20, notEmpty("username required"))
	form.AddPasswordField("Password", 20, notEmpty("password required"))

	err := form.ValidateAll(map[string]string{})
	if err == nil || err.Error() != "username required" {
		t.Fatalf("err=%v; want username required", err)
	}
	if err := form.ValidateAll(map[string]string{"Username": "a", "Password": "b"}); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestSetTextAndValues(t *testing.T) {
	form := NewForm(tui.NewApp())
	form.AddInputFieldWithValidation("Username", "admin", 20)
	form.AddPasswordField("Password", 20)

	if !form.SetText("Password", "s3cret") {
		t.Fatalf("SetText returned false")
	}
	if form.SetText("Missing", "x") {
		t.Fatalf("SetText on unknown label returned true")
	}
	values := form.GetFormValues()
	if values["Username"] != "admin" || values["Password"] != "s3cret" {
		t.Fatalf("unexpected values %v", values)
	}
}

func TestSubmitShowsValidationError(t *testing.T) {
	var ok bool
	modal := captureModal(t, func(app *tui.App) {
		form := NewForm(app)
		form.AddInputFieldWithValidation("Username", "", 20, notEmpty("empty name"))
		ok = form.Submit()
	})
	if ok {
		t.Fatalf("Submit succeeded with invalid input")
	}
	if modal.GetTitle() != " Validation Error " {
		t.Fatalf("modal title=%q", modal.GetTitle())
	}
	if !strings.Contains(modalText(modal), "empty name") {
		t.Fatalf("missing message in %q", modalText(modal))
	}
}

func TestSubmitErrorReturnsToParent(t *testing.T) {
	returnTo := &recordingPrimitive{Box: tview.NewBox()}
	modal := captureModal(t, func(app *tui.App) {
		form := NewForm(app)
		form.SetParentView(returnTo)
		form.AddInputFieldWithValidation("Username", "ok", 20)
		form.SetOnSubmit(func(map[string]string) error { return errors.New("boom") })
		form.Submit()
	})
	if !strings.Contains(modalText(modal), "boom") {
		t.Fatalf("missing message in %q", modalText(modal))
	}
	modalDone(modal)(0, "OK")
	if !returnTo.focused {
		t.Fatalf("expected parent view to receive focus")
	}
}

func TestSubmitPassesValues(t *testing.T) {
	form := NewForm(tui.NewApp())
	form.AddInputFieldWithValidation("Username", "admin", 20)
	var got map[string]string
	form.SetOnSubmit(func(values map[string]string) error {
		got = values
		return nil
	})
	if !form.Submit() {
		t.Fatalf("Submit failed")
	}
	if got["Username"] != "admin" {
		t.Fatalf("values=%v", got)
	}
}

func TestCancelCallsHandler(t *testing.T) {
	called := false
	form := NewForm(tui.NewApp())
	form.SetOnCancel(func() { called = true })
	form.AddCancelButton("Cancel")
	form.Cancel()
	if !called {
		t.Fatalf("expected cancel handler to be called")
	}
}

func TestAlertWithoutParentReturnsToForm(t *testing.T) {
	var (
		app  *tui.App
		form *Form
	)
	modal := captureModal(t, func(a *tui.App) {
		app = a
		form = NewForm(a)
		form.showError("Oops", errors.New("failure"))
	})
	if !strings.HasPrefix(modalText(modal), tui.SymbolError+" failure") {
		t.Fatalf("unexpected text %q", modalText(modal))
	}
	modalDone(modal)(0, "OK")
	if app.GetFocus() != form.Form {
		t.Fatalf("expected the form to regain focus")
	}
}
