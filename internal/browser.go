package internal

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Navigation is one navigation event observed in a presented browser
// window. PostData carries the form payload when the navigation was a POST.
type Navigation struct {
	URL      string
	PostData url.Values
}

// BrowserWindow is a handle to a presented browser window.
type BrowserWindow interface {
	// Navigations streams the window's navigation events.
	Navigations() <-chan Navigation
	// Closed is closed when the user closes the window.
	Closed() <-chan struct{}
	// Show makes a hidden window visible.
	Show()
	Close()
}

// WindowPresenter opens browser windows whose navigations can be
// intercepted. The presentation itself (Electron, webview, ...) lives
// outside this package.
type WindowPresenter interface {
	Open(url string, visible bool, title string) (BrowserWindow, error)
}

// OpenSystemBrowser launches the default browser on the host OS.
func OpenSystemBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform")
	}
	return cmd.Start()
}
