package notify

import (
	"context"
	"net/http"
	"time"
)

// discordUsername overrides the webhook's configured name on every post.
const discordUsername = "BlockChainBazaar"

// Embed colors by alert title; anything else is posted grey.
var discordColors = map[string]int{
	"Item sold":      0x2ecc71,
	"Auction unsold": 0xe67e22,
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type discordMessage struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// DiscordSender posts marketplace alerts to a Discord channel webhook as a
// single embed.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     newHTTPClient(),
		now:        time.Now,
	}
}

// Send posts one embed. Discord replies 204 on success.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	color, ok := discordColors[title]
	if !ok {
		color = 0x95a5a6
	}
	return postJSON(ctx, d.client, d.Name(), d.webhookURL, discordMessage{
		Username: discordUsername,
		Embeds: []discordEmbed{{
			Title:       title,
			Description: message,
			Color:       color,
			Timestamp:   d.now().UTC().Format(time.RFC3339),
		}},
	})
}

func (d *DiscordSender) Name() string {
	return "discord"
}
