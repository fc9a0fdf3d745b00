package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"budgetwise/internal/config"
	"budgetwise/internal/log"
)

// SMSSender delivers alerts through an HTTP SMS gateway. The subject is
// dropped; SMS carries the message body only.
type SMSSender struct {
	cfg    *config.Config
	client *http.Client
	logger *log.Logger
}

func NewSMSSender(cfg *config.Config, logger *log.Logger) *SMSSender {
	return &SMSSender{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.WithComponent(log.ComponentNotify),
	}
}

type smsRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

func (s *SMSSender) Send(to, _ string, body string) error {
	payload, err := json.Marshal(smsRequest{
		To:   to,
		From: s.cfg.SMSFromNumber,
		Body: body,
	})
	if err != nil {
		return fmt.Errorf("marshal sms request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.cfg.SMSGatewayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.SMSAuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.SMSAuthToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, respBody)
	}

	s.logger.Info("sms sent", "to", to)
	return nil
}
