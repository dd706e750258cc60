package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/certassist/internal/complaint"
	"github.com/user/certassist/internal/config"
	ctxengine "github.com/user/certassist/internal/context"
	"github.com/user/certassist/internal/fetch"
	"github.com/user/certassist/internal/flow"
	"github.com/user/certassist/internal/gateway"
	"github.com/user/certassist/internal/poller"
	"github.com/user/certassist/internal/state"
	"github.com/user/certassist/internal/telegram"
	"github.com/user/certassist/internal/types"
	"github.com/user/certassist/internal/webhook"
	"github.com/user/certassist/pkg/llm"
	"github.com/user/certassist/pkg/llm/ollama"
	"github.com/user/certassist/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the certassist daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "certassist.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

// newProvider picks the model client from config. Anything that speaks
// the OpenAI chat API goes through the openai client.
func newProvider(cfg *config.Config) llm.Provider {
	llmCfg := &llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}
	if cfg.LLM.Provider == "ollama" {
		return ollama.New(llmCfg)
	}
	return openai.New(llmCfg)
}

// telegramNotifier forwards poller updates to Telegram sessions; keys
// from other transports are ignored.
func telegramNotifier(adapter *telegram.Adapter) poller.Notifier {
	return func(key types.SessionKey, text string) {
		if err := adapter.SendTo(string(key), text); err != nil {
			slog.Debug("skip transport notify", "session_key", key, "error", err)
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Stores
	sessions := state.NewSessionStore(cfg.DataDir)
	transcripts := state.NewTranscriptStore(cfg.DataDir)
	evidence := state.NewEvidenceStore(cfg.DataDir)
	tracker := state.NewTrackingStore(filepath.Join(cfg.DataDir, "tracking.json"))

	provider := newProvider(cfg)

	budget, err := ctxengine.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create context engine: %w", err)
	}

	complaints := complaint.New(cfg.Complaint.BaseURL)

	// Conversation engine
	engine := flow.NewEngine(flow.Deps{
		Provider:    provider,
		Budget:      budget,
		Transcripts: transcripts,
		Evidence:    evidence,
		Complaints:  complaints,
		Tracker:     tracker,
		Capturer:    fetch.NewCapturer(),
		Logger:      slog.Default(),
	})

	// Gateway
	gw := gateway.New(sessions, int64(cfg.MaxConcurrent))
	gw.Queue.SetProcessor(engine.ProcessRun)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw.Start(ctx)
	defer gw.Stop()

	slog.Info("certassist started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"pid_file", pidPath,
	)

	// Telegram adapter
	var notify poller.Notifier
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw, sessions, transcripts, slog.Default())
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")
		notify = telegramNotifier(adapter)
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Status poller
	statusPoller := poller.New(tracker, complaints, sessions, transcripts, notify, slog.Default())
	if err := statusPoller.Start(ctx, cfg.Complaint.PollSchedule); err != nil {
		return fmt.Errorf("start status poller: %w", err)
	}
	defer statusPoller.Stop()

	// HTTP front
	webhookSrv := webhook.NewServer(gw, sessions, transcripts, evidence)
	httpServer := &http.Server{
		Addr:    cfg.Webhook.Addr,
		Handler: webhookSrv,
	}
	go func() {
		slog.Info("webhook server started", "listen", cfg.Webhook.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("webhook server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
