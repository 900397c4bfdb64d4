package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// maxHighlights caps the example lines included in one message.
const maxHighlights = 5

// Notification 汇总一次批处理的结果。
type Notification struct {
	Command    string
	Source     string
	Finished   time.Time
	Analysed   int
	Flagged    int
	Skipped    int
	Highlights []string
	OutputDir  string
}

// Worth reports whether the batch found anything to tell about.
func (n Notification) Worth() bool {
	return n.Flagged > 0
}

// Notifier 定义通知输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 通知器。
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
		logger:   logger.With().Str("component", "notify_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送批处理摘要。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	})
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
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram 返回 ok=false: %s", result.Description)
	}

	n.logger.Info().
		Str("command", note.Command).
		Int("flagged", note.Flagged).
		Msg("批处理摘要已发送 (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[busmon %s]\n", note.Command)
	if note.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", note.Source)
	}
	if !note.Finished.IsZero() {
		fmt.Fprintf(&b, "Finished: %s UTC\n", note.Finished.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Analysed: %d\nFlagged: %d\nSkipped: %d\n", note.Analysed, note.Flagged, note.Skipped)
	for i, line := range note.Highlights {
		if i == maxHighlights {
			fmt.Fprintf(&b, "... and %d more\n", len(note.Highlights)-maxHighlights)
			break
		}
		fmt.Fprintf(&b, "- %s\n", line)
	}
	if note.OutputDir != "" {
		fmt.Fprintf(&b, "Output: %s\n", note.OutputDir)
	}
	return b.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
