package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ratehub/internal/rates"
)

// Notification carries the context of a degraded or failed
// synchronization run.
type Notification struct {
	RunAt  time.Time
	Report rates.SyncReport
	Fatal  bool
}

// Notifier delivers run notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs the Telegram channel.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify posts the run summary via sendMessage.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Time("run_at", note.RunAt).Bool("fatal", note.Fatal).Msg("sync alert sent")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	if note.Fatal {
		builder.WriteString("[ratehub] Synchronization FAILED\n")
	} else {
		builder.WriteString("[ratehub] Synchronization degraded\n")
	}
	builder.WriteString(fmt.Sprintf("Run: %s UTC\n", note.RunAt.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Fetched: %d rates\n", note.Report.Total))

	names := make([]string, 0, len(note.Report.Sources))
	for name := range note.Report.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		src := note.Report.Sources[name]
		if src.OK {
			builder.WriteString(fmt.Sprintf("%s: ok (%d)\n", name, src.Count))
		} else {
			builder.WriteString(fmt.Sprintf("%s: FAILED (%s)\n", name, src.Error))
		}
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
