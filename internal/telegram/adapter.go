// Package telegram bridges Telegram chats to the conversation gateway.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/certassist/internal/flow"
	"github.com/user/certassist/internal/gateway"
	"github.com/user/certassist/internal/types"
)

const maxTelegramMessage = 4096

// maxDownloadBytes bounds evidence downloads from Telegram's file API.
const maxDownloadBytes = 20 << 20

// Adapter long-polls Telegram and feeds messages, commands and file
// uploads into the gateway.
type Adapter struct {
	bot        *tgbotapi.BotAPI
	gateway    *gateway.Gateway
	sessions   types.SessionStore
	transcript types.TranscriptStore
	logger     *slog.Logger
	httpClient *http.Client
}

// New creates a Telegram adapter from a bot token.
func New(token string, gw *gateway.Gateway, sessions types.SessionStore, transcript types.TranscriptStore, logger *slog.Logger) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		bot:        bot,
		gateway:    gw,
		sessions:   sessions,
		transcript: transcript,
		logger:     logger,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Start begins long-polling for Telegram updates. It returns when ctx is
// cancelled.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	chatID := msg.Chat.ID
	event := &types.InboundEvent{
		Source:     "telegram",
		SessionKey: buildSessionKey(msg.From.ID, msg.Chat.ID),
		UserID:     strconv.FormatInt(msg.From.ID, 10),
		Text:       msg.Text,
	}

	if files := a.collectUploads(msg); len(files) > 0 {
		event.Files = files
		event.Text = msg.Caption
	}
	if event.Text == "" && len(event.Files) == 0 {
		return
	}

	a.dispatch(ctx, chatID, event)
}

// collectUploads downloads photos and documents attached to a message.
// For photos Telegram sends several sizes; only the largest is kept.
func (a *Adapter) collectUploads(msg *tgbotapi.Message) []types.Upload {
	var uploads []types.Upload

	if len(msg.Photo) > 0 {
		best := msg.Photo[len(msg.Photo)-1]
		data, err := a.download(best.FileID)
		if err != nil {
			a.logger.Warn("download photo", "file_id", best.FileID, "error", err)
		} else {
			uploads = append(uploads, types.Upload{
				Name:     fmt.Sprintf("photo-%s.jpg", best.FileUniqueID),
				MimeType: "image/jpeg",
				Data:     data,
			})
		}
	}

	if msg.Document != nil {
		data, err := a.download(msg.Document.FileID)
		if err != nil {
			a.logger.Warn("download document", "file_id", msg.Document.FileID, "error", err)
		} else {
			mime := msg.Document.MimeType
			if mime == "" {
				mime = "application/octet-stream"
			}
			name := msg.Document.FileName
			if name == "" {
				name = "document-" + msg.Document.FileUniqueID
			}
			uploads = append(uploads, types.Upload{Name: name, MimeType: mime, Data: data})
		}
	}

	return uploads
}

func (a *Adapter) download(fileID string) ([]byte, error) {
	url, err := a.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file URL: %w", err)
	}
	resp, err := a.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	action := ""
	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hello! I'm the Cyber AI Assistant. Commands: /report to file a complaint, /risk to analyze a scanner report, /playbook to generate an incident playbook, /status to check a complaint, /session for session info.")
		return
	case "new":
		action = flow.ActionNewChat
	case "report":
		action = flow.ActionFileReport
	case "risk":
		action = flow.ActionRiskAnalysis
	case "playbook":
		action = flow.ActionPlaybook
	case "status":
		action = flow.ActionCheckStatus
	case "session":
		key := buildSessionKey(msg.From.ID, msg.Chat.ID)
		sid, err := a.sessions.ResolveOrCreate(ctx, key)
		if err != nil {
			a.sendResponse(chatID, "Error fetching session info.")
			return
		}
		count, err := a.transcript.Count(ctx, sid)
		if err != nil {
			a.sendResponse(chatID, "Error fetching session info.")
			return
		}
		a.sendResponse(chatID, fmt.Sprintf("Session: %s\nMessages: %d", sid, count))
		return
	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /new, /report, /risk, /playbook, /status, /session")
		return
	}

	event := &types.InboundEvent{
		Source:     "telegram",
		SessionKey: buildSessionKey(msg.From.ID, msg.Chat.ID),
		UserID:     strconv.FormatInt(msg.From.ID, 10),
		Action:     action,
	}
	a.dispatch(ctx, chatID, event)
}

func (a *Adapter) dispatch(ctx context.Context, chatID int64, event *types.InboundEvent) {
	err := a.gateway.HandleInbound(ctx, event, gateway.WithOnReply(func(response string) {
		a.sendResponse(chatID, response)
	}))
	if err != nil {
		a.logger.Error("handle inbound", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
	}
}

// SendTo pushes an unsolicited message to the chat encoded in a session
// key ("telegram:<user>:<chat>"), e.g. a complaint status update.
func (a *Adapter) SendTo(sessionKey, text string) error {
	parts := strings.Split(sessionKey, ":")
	if len(parts) != 3 || parts[0] != "telegram" {
		return fmt.Errorf("not a telegram session key: %s", sessionKey)
	}
	chatID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return fmt.Errorf("parse chat ID from %s: %w", sessionKey, err)
	}
	a.sendResponse(chatID, text)
	return nil
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	parts := splitMessage(text)
	for _, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				a.logger.Error("send message", "chat_id", chatID, "error", err)
			}
		}
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func buildSessionKey(userID, chatID int64) types.SessionKey {
	return types.NewSessionKey("telegram",
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(chatID, 10),
	)
}
