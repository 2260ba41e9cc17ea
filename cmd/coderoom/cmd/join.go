package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/coderoom/coderoom/internal/config"
	"github.com/coderoom/coderoom/internal/domain"
	"github.com/coderoom/coderoom/internal/media"
	"github.com/coderoom/coderoom/internal/mesh"
	"github.com/coderoom/coderoom/internal/notify"
	"github.com/coderoom/coderoom/internal/session"
	"github.com/coderoom/coderoom/internal/signal"
)

var (
	flagJoinName    string
	flagJoinServer  string
	flagJoinNoAudio bool
)

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join a collaboration room",
	Long: `Join a collaboration room and stay attached to it until you leave.

While joined, the prompt accepts:
  mic          toggle your microphone
  view         toggle whiteboard / editor view
  doc <text>   replace the shared document
  roster       list room members
  leave        leave the room and exit`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagJoinName == "" {
			return fmt.Errorf("--name is required")
		}
		if err := domain.ValidateUsername(flagJoinName); err != nil {
			return err
		}
		return runJoin(domain.RoomID(args[0]), flagJoinName)
	},
}

func runJoin(room domain.RoomID, username string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	serverURL := cfg.Client.ServerURL
	if flagJoinServer != "" {
		serverURL = flagJoinServer
	}

	ctx, cancel := signalContext()
	defer cancel()

	ch, err := signal.Dial(ctx, serverURL)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", serverURL, err)
	}

	var source media.Source
	if !flagJoinNoAudio {
		source, err = media.NewSampleSource(media.Silence{})
		if err != nil {
			ch.Close()
			return fmt.Errorf("open audio source: %w", err)
		}
		defer source.Close()
	}

	factory := mesh.NewRTCFactory(cfg.ICE.STUNURLs, source)
	term := notify.NewTerminal()
	ctrl := session.NewController(room, username, ch, factory, source, term)

	notify.Banner(string(room), username)

	if err := ctrl.Join(); err != nil {
		ch.Close()
		return fmt.Errorf("join room: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Run(ctx)
	}()

	go commandLoop(ctrl, cancel)

	err = <-done
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func commandLoop(ctrl *session.Controller, cancel context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cmd, rest, _ := strings.Cut(line, " ")
		switch cmd {
		case "":
		case "mic":
			if ctrl.ToggleMic() {
				pterm.Info.Println("microphone on")
			} else {
				pterm.Info.Println("microphone muted")
			}
		case "view":
			if ctrl.ToggleView() {
				pterm.Info.Println("switched to whiteboard")
			} else {
				pterm.Info.Println("switched to editor")
			}
		case "doc":
			ctrl.SetDocument(rest)
			pterm.Info.Println("document updated")
		case "roster":
			printRoster(ctrl)
		case "leave", "quit", "exit":
			cancel()
			return
		default:
			pterm.Warning.Printfln("unknown command %q", cmd)
		}
	}
	cancel()
}

func printRoster(ctrl *session.Controller) {
	roster := ctrl.Roster()
	self := ctrl.Self()
	if len(roster) == 0 {
		pterm.Info.Println("no members yet")
		return
	}
	rows := pterm.TableData{{"Member", "Socket"}}
	for _, m := range roster {
		name := m.Username
		if m.SocketID == self {
			name += " (you)"
		}
		rows = append(rows, []string{name, string(m.SocketID)})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func signalContext() (context.Context, context.CancelFunc) {
	return ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagJoinName, "name", "n", "", "Display name in the room")
	joinCmd.Flags().StringVarP(&flagJoinServer, "server", "s", "", "Signal server websocket URL")
	joinCmd.Flags().BoolVar(&flagJoinNoAudio, "no-audio", false, "Join without publishing audio")
}
