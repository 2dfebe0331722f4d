package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/peter-kozarec/tickreplay/pkg/bus"
	"github.com/peter-kozarec/tickreplay/pkg/common"
	"go.uber.org/zap"
)

const pushoverEndpoint = "https://api.pushover.net/1/messages.json"

// Pushover sends a phone notification when a stop fires or a session ends.
type Pushover struct {
	logger   *zap.Logger
	client   *http.Client
	endpoint string
	user     string
	token    string
	device   string
}

func NewPushover(logger *zap.Logger, user, token, device string) *Pushover {
	return &Pushover{
		logger:   logger,
		client:   &http.Client{Timeout: 5 * time.Second},
		endpoint: pushoverEndpoint,
		user:     user,
		token:    token,
		device:   device,
	}
}

func (p *Pushover) WithEndpoint(endpoint string) *Pushover {
	p.endpoint = endpoint
	return p
}

func (p *Pushover) WithPositionClosed(handler bus.PositionCloseEventHandler) bus.PositionCloseEventHandler {
	return func(ctx context.Context, closed common.PositionClosed) {
		if closed.Reason != common.CloseReasonFill {
			msg := fmt.Sprintf("%s %s %s\nexit = %s\npnl = %s",
				closed.Position.Symbol, closed.Position.Side, closed.Reason,
				closed.ExitPrice, closed.RealizedPnL.Rescale(2))
			p.sendAsync(ctx, "Position Closed", msg)
		}
		handler(ctx, closed)
	}
}

func (p *Pushover) WithSessionFinished(handler bus.SessionEventHandler) bus.SessionEventHandler {
	return func(ctx context.Context, info common.SessionInfo) {
		p.sendAsync(ctx, "Session Finished", fmt.Sprintf("%s %s", info.Day, strings.Join(info.Symbols, ",")))
		handler(ctx, info)
	}
}

func (p *Pushover) sendAsync(ctx context.Context, title, message string) {
	go func() {
		if err := p.send(context.WithoutCancel(ctx), title, message); err != nil {
			p.logger.Warn("pushover notification failed", zap.Error(err))
		}
	}()
}

func (p *Pushover) send(ctx context.Context, title, message string) error {
	data := url.Values{}
	data.Set("token", p.token)
	data.Set("user", p.user)
	data.Set("device", p.device)
	data.Set("title", title)
	data.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushover post failed: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pushover error: %s", body)
	}
	return nil
}
