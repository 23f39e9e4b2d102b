package wizard

import (
	"context"
	"errors"
	"testing"

	"github.com/rivo/tview"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/tui"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/tui/components"
)

func stubRunner(t *testing.T, fn func(form *components.Form)) {
	t.Helper()
	original := credentialsRunner
	credentialsRunner = func(_ context.Context, app *tui.App, root tview.Primitive, form *components.Form) error {
		fn(form)
		return nil
	}
	t.Cleanup(func() { credentialsRunner = original })
}

func TestCredentialFromValues(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		wantErr bool
	}{
		{"ok", map[string]string{LabelUsername: " admin ", LabelPassword: "pw", LabelConfirm: "pw"}, false},
		{"no user", map[string]string{LabelPassword: "pw", LabelConfirm: "pw"}, true},
		{"no password", map[string]string{LabelUsername: "admin"}, true},
		{"mismatch", map[string]string{LabelUsername: "admin", LabelPassword: "a", LabelConfirm: "b"}, true},
	}
	for _, tt := range tests {
		cred, err := credentialFromValues(tt.values)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: err=%v wantErr=%v", tt.name, err, tt.wantErr)
		}
		if err == nil && cred.Username != "admin" {
			t.Fatalf("%s: username=%q", tt.name, cred.Username)
		}
	}
}

func TestPromptCredentialsSubmit(t *testing.T) {
	stubRunner(t, func(form *components.Form) {
		form.SetText(LabelPassword, "s3cret")
		form.SetText(LabelConfirm, "s3cret")
		if !form.Submit() {
			t.Fatalf("submit rejected")
		}
	})

	cred, err := CredentialsForm{APIURL: "https://localhost:55555/api"}.PromptCredentials(context.Background(), "fwadmin")
	if err != nil {
		t.Fatalf("PromptCredentials error: %v", err)
	}
	if cred.Username != "fwadmin" || cred.Password != "s3cret" {
		t.Fatalf("unexpected credential %+v", cred)
	}
}

func TestPromptCredentialsCancel(t *testing.T) {
	stubRunner(t, func(form *components.Form) { form.Cancel() })

	_, err := CredentialsForm{}.PromptCredentials(context.Background(), "")
	if !errors.Is(err, ErrCredentialsCancelled) {
		t.Fatalf("err=%v; want %v", err, ErrCredentialsCancelled)
	}
}

func TestPromptCredentialsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (CredentialsForm{}).PromptCredentials(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v; want context.Canceled", err)
	}
}
