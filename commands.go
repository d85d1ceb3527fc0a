package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finpal-core-poc-v1/assistant/internal/api"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/controller"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/speech"
)

type configLoader func() (*AppConfig, error)

func newChatCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Typed conversation with the assistant",
		Long: "Reads one turn per line. Commands: /reset clears the history, " +
			"/sound on|off toggles speech, /stop interrupts speech, /quit exits.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, recognizeMic)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			stopPrint := printEvents(a.ctrl, out, cfg.Prompt.AssistantName, false)
			defer stopPrint()
			printHistory(out, a.ctrl.Messages(), cfg.Prompt.AssistantName)

			sc := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !sc.Scan() {
					return sc.Err()
				}
				err := runChatLine(cmd.Context(), a.ctrl, out, sc.Text())
				if errors.Is(err, errQuit) {
					return nil
				}
				if err != nil {
					fmt.Fprintf(out, "! %v\n", err)
				}
			}
		},
	}
}

func runChatLine(ctx context.Context, ctrl *controller.Controller, out io.Writer, line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case line == "/quit":
		return errQuit
	case line == "/reset":
		if err := ctrl.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "(history cleared)")
		return nil
	case line == "/stop":
		ctrl.StopSpeaking()
		return nil
	case strings.HasPrefix(line, "/sound"):
		p := ctrl.Preferences()
		p.SoundEnabled = strings.TrimSpace(strings.TrimPrefix(line, "/sound")) != "off"
		p = ctrl.SetPreferences(p)
		fmt.Fprintf(out, "(sound %v)\n", p.SoundEnabled)
		return nil
	}
	if err := ctrl.SubmitTurn(ctx, line); err != nil {
		return err
	}
	return nil
}

func newVoiceCmd(load configLoader) *cobra.Command {
	var stdin bool
	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Spoken conversation: press Enter to talk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			mode := recognizeMic
			if stdin {
				mode = recognizeStdin
			}
			a, err := buildApp(cmd.Context(), cfg, mode)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			stopPrint := printEvents(a.ctrl, out, cfg.Prompt.AssistantName, true)
			defer stopPrint()

			// in stdin mode the recognizer owns stdin, so there is no Enter prompt
			var keys *bufio.Scanner
			if !stdin {
				keys = bufio.NewScanner(os.Stdin)
			}
			inputClosed := make(chan struct{})
			events, unsubscribe := a.ctrl.Subscribe()
			defer unsubscribe()
			go func() {
				closed := false
				for ev := range events {
					if !closed && stdin && ev.Type == controller.EventCaptureFailed && ev.CaptureError == speech.KindAudioCaptureFailure {
						close(inputClosed)
						closed = true
					}
				}
			}()

			for {
				if err := waitIdle(ctx, a.ctrl); err != nil {
					return nil
				}
				if keys != nil {
					fmt.Fprint(out, "[Enter] to talk, q to quit: ")
					if !keys.Scan() || strings.TrimSpace(keys.Text()) == "q" {
						return keys.Err()
					}
					fmt.Fprintln(out, "(listening)")
				}
				if err := a.ctrl.StartListening(ctx); err != nil {
					fmt.Fprintf(out, "! %v\n", err)
				}
				select {
				case <-inputClosed:
					return nil
				case <-ctx.Done():
					return nil
				default:
				}
			}
		},
	}
	cmd.Flags().BoolVar(&stdin, "stdin", false, "read utterances from stdin instead of the microphone")
	return cmd
}

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversation over HTTP and a websocket event stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, recognizeMic)
			if err != nil {
				return err
			}
			defer a.Close()
			return api.NewServer(cfg.HTTP, a.ctrl).Run(cmd.Context())
		},
	}
}

// printEvents echoes appended messages and capture failures until the returned
// stop function runs.
func printEvents(ctrl *controller.Controller, out io.Writer, name string, echoUser bool) func() {
	events, unsubscribe := ctrl.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			switch ev.Type {
			case controller.EventMessageAppended:
				if ev.Message.Role == model.RoleUser && !echoUser {
					continue
				}
				printMessage(out, *ev.Message, name)
			case controller.EventCaptureFailed:
				fmt.Fprintf(out, "(microphone: %s)\n", ev.CaptureError)
			}
		}
	}()
	return func() {
		unsubscribe()
		<-done
	}
}

func printHistory(out io.Writer, msgs []model.Message, name string) {
	for _, m := range msgs {
		printMessage(out, m, name)
	}
}

func printMessage(out io.Writer, m model.Message, name string) {
	who := "You"
	if m.Role == model.RoleAssistant {
		who = name
	}
	fmt.Fprintf(out, "%s: %s\n", who, m.Content)
	for _, s := range m.Suggestions {
		fmt.Fprintf(out, "  - %s\n", s)
	}
}
