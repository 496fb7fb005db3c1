package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"homeservices-platform/internal/config"
)

// TwilioSMSGateway sends SMS through the Twilio Messages REST API.
// No SDK; the request surface we need is one form POST.
type TwilioSMSGateway struct {
	accountSID string
	authToken  string
	from       string

	httpClient *http.Client
	baseURL    string // override for tests
}

func NewTwilioSMSGateway(cfg config.TwilioConfig) (*TwilioSMSGateway, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, errors.New("notify: twilio account sid, auth token and from number are required")
	}
	return &TwilioSMSGateway{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
		httpClient: &http.Client{},
		baseURL:    "https://api.twilio.com",
	}, nil
}

func (g *TwilioSMSGateway) Name() string { return "twilio_sms" }

func (g *TwilioSMSGateway) Send(ctx context.Context, to Contact, templateID string, payload map[string]any) error {
	if to.Phone == "" {
		return errors.New("notify: recipient has no phone number")
	}

	rendered := RenderTemplate(templateID, payload)

	form := url.Values{}
	form.Set("To", to.Phone)
	form.Set("From", g.from)
	form.Set("Body", rendered.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", g.baseURL, g.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.accountSID, g.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("twilio returned status %d", resp.StatusCode)
	}
	return nil
}
