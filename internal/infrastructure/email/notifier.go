package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"diecast-trading/internal/domain"
	"diecast-trading/pkg/logger"
)

const defaultEndpoint = "https://api.resend.com/emails"

type Config struct {
	APIKey   string
	Endpoint string
	From     string
}

// ResendNotifier posts outcome emails to a Resend-compatible transactional
// email API. With no API key configured it stays a silent no-op, matching
// the "notification channel configured" condition of the finalizer.
type ResendNotifier struct {
	cfg    Config
	client *http.Client
	log    logger.Logger
}

func NewResendNotifier(cfg Config, log logger.Logger) *ResendNotifier {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	return &ResendNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (n *ResendNotifier) NotifyOutcome(ctx context.Context, seller, winner *domain.Contact, outcome *domain.Outcome) error {
	if n.cfg.APIKey == "" {
		return nil
	}
	if seller == nil || seller.Email == "" {
		return nil
	}

	subject := "Your auction ended with no bids"
	html := `<p>Your auction ended without any bids.</p>`
	if outcome.HasWinner() {
		winnerEmail := "unavailable"
		if winner != nil && winner.Email != "" {
			winnerEmail = winner.Email
		}
		subject = "Your auction sold!"
		html = fmt.Sprintf(
			`<p>Your auction has ended.</p>
             <p><b>Winning bid:</b> %.2f</p>
             <p><b>Winner contact:</b> %s</p>`,
			outcome.Amount, winnerEmail)
	}

	body, err := json.Marshal(sendRequest{
		From:    n.cfg.From,
		To:      seller.Email,
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send outcome email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send outcome email: unexpected status %d", resp.StatusCode)
	}

	n.log.Info("Outcome email sent", "listing_id", outcome.ListingID, "to", seller.Email)
	return nil
}
