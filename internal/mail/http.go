package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPSender posts messages as JSON to a transactional mail relay.
type HTTPSender struct {
	endpoint string
	token    string
	from     string
	client   *resty.Client
}

type relayPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// NewHTTPSender creates a relay gateway. token is sent as a bearer token
// when non-empty.
func NewHTTPSender(endpoint, token, from string) *HTTPSender {
	return &HTTPSender{
		endpoint: endpoint,
		token:    token,
		from:     from,
		client: resty.New().
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(200 * time.Millisecond),
	}
}

func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	if s.endpoint == "" {
		return errors.New("mail relay endpoint is required")
	}
	req := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(relayPayload{
			From:    s.from,
			To:      msg.To,
			Subject: msg.Subject,
			HTML:    msg.HTML,
			Text:    msg.Text,
		})
	if s.token != "" {
		req.SetAuthToken(s.token)
	}
	resp, err := req.Post(s.endpoint)
	if err != nil {
		return fmt.Errorf("mail relay request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mail relay returned status %d", resp.StatusCode())
	}
	return nil
}
