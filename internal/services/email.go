package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"activity-storefront/internal/config"
	"activity-storefront/internal/models"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// ResendEmailService handles email sending via Resend API
type ResendEmailService struct {
	config        config.ResendConfig
	baseURL       string
	client        *http.Client
	logger        *zap.Logger
	retryInterval time.Duration
	maxTries      uint
}

// NewResendEmailService creates a new Resend email service
func NewResendEmailService(cfg config.ResendConfig, logger *zap.Logger) *ResendEmailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResendEmailService{
		config:  cfg,
		baseURL: "https://api.resend.com",
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:        logger,
		retryInterval: time.Second,
		maxTries:      3,
	}
}

// UseTransport routes Resend API calls through rt
func (s *ResendEmailService) UseTransport(rt http.RoundTripper) {
	s.client.Transport = rt
}

// ResendEmailRequest represents the request structure for Resend API
type ResendEmailRequest struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html,omitempty"`
	Text        string             `json:"text,omitempty"`
	Tags        []ResendTag        `json:"tags,omitempty"`
	Attachments []ResendAttachment `json:"attachments,omitempty"`
}

// ResendTag represents a tag for email categorization
type ResendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ResendAttachment is a base64 encoded file attached to an email
type ResendAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// ResendErrorResponse represents error response from Resend API
type ResendErrorResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// getFromField constructs the from field properly
func (s *ResendEmailService) getFromField() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail)
	}
	return s.config.FromEmail
}

// SendOrderConfirmation emails the customer their booking summary with the PDF receipt attached
func (s *ResendEmailService) SendOrderConfirmation(ctx context.Context, order *models.Order, bookings []*models.Booking, receipt []byte) error {
	htmlContent, textContent, err := renderOrderConfirmation(order, bookings)
	if err != nil {
		return err
	}

	request := ResendEmailRequest{
		From:    s.getFromField(),
		To:      []string{order.CustomerEmail},
		Subject: fmt.Sprintf("Booking confirmed - %s", order.OrderNumber),
		HTML:    htmlContent,
		Text:    textContent,
		Tags: []ResendTag{
			{Name: "category", Value: "order_confirmation"},
		},
	}
	if len(receipt) > 0 {
		request.Attachments = []ResendAttachment{{
			Filename: fmt.Sprintf("receipt-%s.pdf", order.OrderNumber),
			Content:  base64.StdEncoding.EncodeToString(receipt),
		}}
	}

	return s.sendEmail(ctx, request)
}

// SendPaymentFailed tells the customer their payment did not go through
func (s *ResendEmailService) SendPaymentFailed(ctx context.Context, order *models.Order, reason string) error {
	htmlContent, textContent, err := renderPaymentFailed(order, reason)
	if err != nil {
		return err
	}

	return s.sendEmail(ctx, ResendEmailRequest{
		From:    s.getFromField(),
		To:      []string{order.CustomerEmail},
		Subject: fmt.Sprintf("Payment unsuccessful - %s", order.OrderNumber),
		HTML:    htmlContent,
		Text:    textContent,
		Tags: []ResendTag{
			{Name: "category", Value: "payment_failed"},
		},
	})
}

// sendEmail posts to the Resend API, retrying transient failures
func (s *ResendEmailService) sendEmail(ctx context.Context, request ResendEmailRequest) error {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval

	operation := func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(jsonData))
		if err != nil {
			return "", backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("failed to send email: %w", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var out struct {
				ID string `json:"id"`
			}
			_ = json.Unmarshal(body, &out)
			return out.ID, nil
		}

		var errorResp ResendErrorResponse
		_ = json.Unmarshal(body, &errorResp)
		apiErr := fmt.Errorf("resend API error (%d): %s", resp.StatusCode, errorResp.Message)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", apiErr
		}
		return "", backoff.Permanent(apiErr)
	}

	id, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.maxTries))
	if err != nil {
		s.logger.Error("Failed to send email",
			zap.Strings("to", request.To),
			zap.String("subject", request.Subject),
			zap.Error(err))
		return err
	}

	s.logger.Info("Email sent",
		zap.String("email_id", id),
		zap.Strings("to", request.To),
		zap.String("subject", request.Subject))
	return nil
}

type confirmationLine struct {
	Product  string
	Schedule string
	Students string
	Total    string
}

var orderConfirmationHTML = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Booking Confirmed</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #2563EB; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background-color: #f9f9f9; }
        table { width: 100%; border-collapse: collapse; }
        td, th { padding: 6px; border-bottom: 1px solid #ddd; text-align: left; }
        .footer { text-align: center; padding: 20px; color: #666; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>You're booked in!</h1></div>
        <div class="content">
            <p>Hi {{.Name}},</p>
            <p>Thanks for your order <strong>{{.OrderNumber}}</strong>. Your receipt is attached.</p>
            <table>
                <tr><th>Program</th><th>When</th><th>Participants</th><th>Total</th></tr>
                {{range .Lines}}<tr><td>{{.Product}}</td><td>{{.Schedule}}</td><td>{{.Students}}</td><td>{{.Total}}</td></tr>
                {{end}}
            </table>
            <p>Subtotal: {{.Subtotal}}<br>GST: {{.Tax}}<br><strong>Total paid: {{.Total}}</strong></p>
            <p>{{.BookingCount}} booking(s) confirmed.</p>
        </div>
        <div class="footer"><p>Please contact us if any details need to change.</p></div>
    </div>
</body>
</html>`))

var paymentFailedHTML = template.Must(template.New("failed").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Payment unsuccessful</title></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Your payment did not go through</h2>
    <p>Hi {{.Name}},</p>
    <p>We couldn't process the payment for order <strong>{{.OrderNumber}}</strong>{{if .Reason}}: {{.Reason}}{{end}}.</p>
    <p>Your cart has been kept so you can try again with another card.</p>
</body>
</html>`))

func confirmationLines(order *models.Order) []confirmationLine {
	lines := make([]confirmationLine, 0, len(order.Items))
	for _, item := range order.Items {
		names := make([]string, 0, len(item.Students))
		for i := range item.Students {
			names = append(names, item.Students[i].FullName())
		}
		schedule := strings.Join(item.SelectedDates, ", ")
		if item.TimeSlot != "" {
			schedule = strings.TrimSpace(schedule + " " + item.TimeSlot)
		}
		lines = append(lines, confirmationLine{
			Product:  item.ProductName,
			Schedule: schedule,
			Students: strings.Join(names, ", "),
			Total:    "$" + item.TotalPrice.StringFixed(2),
		})
	}
	return lines
}

func renderOrderConfirmation(order *models.Order, bookings []*models.Booking) (string, string, error) {
	lines := confirmationLines(order)
	data := map[string]interface{}{
		"Name":         order.CustomerName,
		"OrderNumber":  order.OrderNumber,
		"Lines":        lines,
		"Subtotal":     "$" + order.Subtotal.StringFixed(2),
		"Tax":          "$" + order.Tax.StringFixed(2),
		"Total":        "$" + order.Total.StringFixed(2),
		"BookingCount": len(bookings),
	}

	var html bytes.Buffer
	if err := orderConfirmationHTML.Execute(&html, data); err != nil {
		return "", "", fmt.Errorf("failed to render confirmation email: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\nThanks for your order %s.\n\n", order.CustomerName, order.OrderNumber)
	for _, l := range lines {
		fmt.Fprintf(&text, "- %s (%s): %s %s\n", l.Product, l.Schedule, l.Students, l.Total)
	}
	fmt.Fprintf(&text, "\nTotal paid: $%s\n", order.Total.StringFixed(2))

	return html.String(), text.String(), nil
}

func renderPaymentFailed(order *models.Order, reason string) (string, string, error) {
	data := map[string]string{
		"Name":        order.CustomerName,
		"OrderNumber": order.OrderNumber,
		"Reason":      reason,
	}
	var html bytes.Buffer
	if err := paymentFailedHTML.Execute(&html, data); err != nil {
		return "", "", fmt.Errorf("failed to render payment failed email: %w", err)
	}
	text := fmt.Sprintf("Hi %s,\n\nWe couldn't process the payment for order %s.", order.CustomerName, order.OrderNumber)
	if reason != "" {
		text += " Reason: " + reason
	}
	return html.String(), text, nil
}
