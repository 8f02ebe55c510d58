package cmd

import (
	"fmt"
	"log"
	"strings"
	"syscall"

	"github.com/Noovolari/leapp-sub001/internal"
	"github.com/Noovolari/leapp-sub001/internal/ui"
	"golang.org/x/term"
)

// mfaPrompter asks for a one-time MFA code, preferring the bubbletea
// masked input and falling back to raw terminal reads.
type mfaPrompter struct{}

func (mfaPrompter) Ask(title, placeholder, message string) (string, error) {
	fmt.Println("🔐", message)
	code, err := ui.GetInput(title, placeholder, true)
	if err == nil {
		return code, nil
	}
	return readMFACode(), nil
}

func readMFACode() string {
	fmt.Print("Enter MFA code: ")
	var code string
	var char byte
	buf := make([]byte, 1)

	oldState, err := term.MakeRaw(int(syscall.Stdin))
	if err != nil {
		log.Fatalf("❌ Failed to set terminal mode: %v", err)
	}
	defer term.Restore(int(syscall.Stdin), oldState)

	for {
		_, err := syscall.Read(syscall.Stdin, buf)
		if err != nil {
			log.Fatalf("❌ Failed to read input: %v", err)
		}
		char = buf[0]

		if char == 13 || char == 10 { // Enter
			fmt.Print("\r\n")
			break
		} else if char == 127 || char == 8 { // Backspace
			if len(code) > 0 {
				code = code[:len(code)-1]
				fmt.Print("\b \b")
			}
		} else if char >= 32 && char <= 126 { // Printable characters
			code += string(char)
			fmt.Print("*")
		}
	}

	return strings.TrimSpace(code)
}

// selectSession shows a picker over session names and returns the chosen id.
func selectSession(a *app, prompt string) (string, error) {
	sessions, err := a.workspace.ListSessions()
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "", fmt.Errorf("no sessions found")
	}
	names := make([]string, len(sessions))
	for i, s := range sessions {
		names[i] = s.Name
	}
	name, err := ui.Select(prompt, names)
	if err != nil {
		return "", err
	}
	for _, s := range sessions {
		if s.Name == name {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("session %q not found", name)
}

// resolveSession turns a name-or-id argument into a session id, falling
// back to the interactive picker when no argument was given.
func resolveSession(a *app, args []string, prompt string) (string, error) {
	if len(args) == 0 {
		return selectSession(a, prompt)
	}
	sessions, err := a.workspace.ListSessions()
	if err != nil {
		return "", err
	}
	for _, s := range sessions {
		if s.ID == args[0] || s.Name == args[0] {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("session %q not found", args[0])
}

func statusGlyph(status internal.SessionStatus) string {
	switch status {
	case internal.StatusActive:
		return "🟢"
	case internal.StatusPending:
		return "🟡"
	default:
		return "⚪"
	}
}
