// Package notify renders session events on the terminal for the CLI client.
package notify

import (
	"fmt"

	"github.com/pterm/pterm"
)

// Terminal prints member-facing session notifications with pterm.
// It satisfies session.Notifier.
type Terminal struct{}

func NewTerminal() *Terminal {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	return &Terminal{}
}

func (t *Terminal) MemberJoined(username string) {
	pterm.Success.Printfln("%s joined the room", username)
}

func (t *Terminal) MemberLeft(username string) {
	pterm.Info.Printfln("%s left the room", username)
}

func (t *Terminal) MicChanged(username string, on bool) {
	state := "disabled"
	if on {
		state = "enabled"
	}
	pterm.Info.Printfln("%s %s their mic", username, state)
}

func (t *Terminal) ViewChanged(username string, whiteboard bool) {
	mode := "editor"
	if whiteboard {
		mode = "whiteboard"
	}
	pterm.Info.Printfln("%s switched to the %s", username, mode)
}

func (t *Terminal) SessionError(err error) {
	pterm.Error.Printfln("session error: %v", err)
}

// Banner prints the room header shown on join.
func Banner(roomID, username string) {
	pterm.DefaultBox.WithTitle("coderoom").Println(
		fmt.Sprintf("room: %s\nuser: %s", roomID, username))
}
