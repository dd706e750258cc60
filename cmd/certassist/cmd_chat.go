package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/certassist/internal/complaint"
	ctxengine "github.com/user/certassist/internal/context"
	"github.com/user/certassist/internal/fetch"
	"github.com/user/certassist/internal/flow"
	"github.com/user/certassist/internal/gateway"
	"github.com/user/certassist/internal/state"
	"github.com/user/certassist/internal/types"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from the terminal",
	Long:  "Starts an interactive session against the local data dir. Slash commands: /report, /risk, /playbook, /status, /quit.",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

// cliActions maps REPL slash commands to conversation actions.
var cliActions = map[string]string{
	"/new":      flow.ActionNewChat,
	"/report":   flow.ActionFileReport,
	"/risk":     flow.ActionRiskAnalysis,
	"/playbook": flow.ActionPlaybook,
	"/status":   flow.ActionCheckStatus,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	sessions := state.NewSessionStore(cfg.DataDir)
	transcripts := state.NewTranscriptStore(cfg.DataDir)
	evidence := state.NewEvidenceStore(cfg.DataDir)
	tracker := state.NewTrackingStore(filepath.Join(cfg.DataDir, "tracking.json"))

	budget, err := ctxengine.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create context engine: %w", err)
	}

	engine := flow.NewEngine(flow.Deps{
		Provider:    newProvider(cfg),
		Budget:      budget,
		Transcripts: transcripts,
		Evidence:    evidence,
		Complaints:  complaint.New(cfg.Complaint.BaseURL),
		Tracker:     tracker,
		Capturer:    fetch.NewCapturer(),
		Logger:      slog.Default(),
	})

	gw := gateway.New(sessions, 1)
	gw.Queue.SetProcessor(engine.ProcessRun)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gw.Start(ctx)
	defer gw.Stop()

	sessionKey := types.NewSessionKey("cli", "local")
	fmt.Println(flow.WelcomeMessage)
	fmt.Println("Type /report, /risk, /playbook or /status to start, /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		event := &types.InboundEvent{
			Source:     "cli",
			SessionKey: sessionKey,
			UserID:     "local",
		}
		if action, ok := cliActions[line]; ok {
			event.Action = action
		} else {
			event.Text = line
		}

		done := make(chan struct{})
		err := gw.HandleInbound(ctx, event,
			gateway.WithOnReply(func(text string) {
				fmt.Println(text)
			}),
			gateway.WithOnDone(func() { close(done) }),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		<-done
	}
}
