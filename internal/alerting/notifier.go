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
	"github.com/shopspring/decimal"
)

// Notification 封装一次地板价告警的上下文。
type Notification struct {
	Bucket        time.Time
	Category      string
	FloorETH      decimal.Decimal
	ThresholdETH  decimal.Decimal
	ListingCount  int
	TokenCount    int
	Channels      []string
	AdditionalMsg string
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// DiscordNotifier 通过 Discord Webhook 推送 embed 消息。
type DiscordNotifier struct {
	webhookURL string
	username   string
	client     *http.Client
	logger     zerolog.Logger
}

// NewDiscordNotifier 构造 Discord 告警器。
func NewDiscordNotifier(webhookURL, username string, timeout time.Duration, logger zerolog.Logger) *DiscordNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if username == "" {
		username = "herekitty"
	}

	return &DiscordNotifier{
		webhookURL: webhookURL,
		username:   username,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "alert_discord").Logger(),
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// Notify 调用 webhook 推送 embed。
func (n *DiscordNotifier) Notify(ctx context.Context, note Notification) error {
	payload := discordPayload{
		Username: n.username,
		Embeds: []discordEmbed{
			{
				Title:       fmt.Sprintf("Floor alert: %s", note.Category),
				Description: renderMessage(note),
				Color:       3447003,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord 响应码异常: %d", resp.StatusCode)
	}

	n.logger.Info().Time("bucket", note.Bucket).
		Str("category", note.Category).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("告警已发送 (Discord)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("Bucket: %s UTC\n", note.Bucket.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Floor: %s ETH (threshold %s ETH)\n", note.FloorETH.StringFixed(2), note.ThresholdETH.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Listings: %d across %d tokens\n", note.ListingCount, note.TokenCount))
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var _ Notifier = (*DiscordNotifier)(nil)
