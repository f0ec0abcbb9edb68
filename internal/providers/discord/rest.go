package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultAPIBase = "https://discord.com/api/v10"

type Config struct {
	BotToken string
	APIBase  string
	Timeout  time.Duration
}

// RESTProvider talks to the Discord bot HTTP API.
type RESTProvider struct {
	cfg    Config
	client *http.Client
}

func NewREST(cfg Config) *RESTProvider {
	if strings.TrimSpace(cfg.APIBase) == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &RESTProvider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (p *RESTProvider) SendDirectMessage(ctx context.Context, discordUserID string, message string) error {
	discordUserID = strings.TrimSpace(discordUserID)
	if discordUserID == "" {
		return fmt.Errorf("discord: recipient id is required")
	}

	var channel struct {
		ID string `json:"id"`
	}
	if err := p.post(ctx, "/users/@me/channels", map[string]string{"recipient_id": discordUserID}, &channel); err != nil {
		return fmt.Errorf("discord: open dm: %w", err)
	}
	if channel.ID == "" {
		return fmt.Errorf("discord: open dm: empty channel id")
	}

	if err := p.post(ctx, "/channels/"+channel.ID+"/messages", map[string]string{"content": message}, nil); err != nil {
		return fmt.Errorf("discord: post message: %w", err)
	}
	return nil
}

func (p *RESTProvider) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.cfg.APIBase, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+p.cfg.BotToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
