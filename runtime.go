package main

import (
	"context"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// uiRuntime is the slice of the Wails runtime the app uses.
type uiRuntime interface {
	Emit(ctx context.Context, event string, data interface{})
	Alert(ctx context.Context, title, message string)
	OpenURL(ctx context.Context, url string)
	SetClipboard(ctx context.Context, text string) error
}

type wailsRuntime struct{}

func (wailsRuntime) Emit(ctx context.Context, event string, data interface{}) {
	runtime.EventsEmit(ctx, event, data)
}

func (wailsRuntime) Alert(ctx context.Context, title, message string) {
	_, _ = runtime.MessageDialog(ctx, runtime.MessageDialogOptions{
		Type:    runtime.ErrorDialog,
		Title:   title,
		Message: message,
	})
}

func (wailsRuntime) OpenURL(ctx context.Context, url string) {
	runtime.BrowserOpenURL(ctx, url)
}

func (wailsRuntime) SetClipboard(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
