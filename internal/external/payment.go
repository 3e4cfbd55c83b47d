package external

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "tessera/internal/errors"
	"tessera/internal/models"
)

// PaymentClient talks to the team payment gateway (PaymentInit / PaymentCheck).
type PaymentClient struct {
	baseURL    string
	teamSlug   string
	password   string
	language   string
	httpClient *http.Client
}

type PaymentConfig struct {
	BaseURL  string
	TeamSlug string
	Password string
	Timeout  time.Duration
}

type PaymentInitRequest struct {
	TeamSlug    string `json:"teamSlug"`
	Token       string `json:"token"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
}

type PaymentInitResponse struct {
	Success    bool   `json:"success"`
	PaymentID  string `json:"paymentId"`
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	PaymentURL string `json:"paymentURL"`
	Message    string `json:"message,omitempty"`
}

type PaymentCheckRequest struct {
	TeamSlug  string `json:"teamSlug"`
	Token     string `json:"token"`
	PaymentID string `json:"paymentId,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
}

type PaymentCheckResponse struct {
	Success    bool             `json:"success"`
	Payments   []PaymentDetails `json:"payments"`
	TotalCount int              `json:"totalCount"`
	OrderID    string           `json:"orderId"`
}

type PaymentDetails struct {
	PaymentID   string `json:"paymentId"`
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &PaymentClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		teamSlug: cfg.TeamSlug,
		password: cfg.Password,
		language: "ru",
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// generateToken signs a request: values of params plus TeamSlug and Password,
// concatenated in key order and hashed with SHA-256.
func (pc *PaymentClient) generateToken(params map[string]string) string {
	params["TeamSlug"] = pc.teamSlug
	params["Password"] = pc.password

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(params[key])
	}

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// CreatePayment initialises a gateway payment for exactly req.AmountMinor.
// The gateway keeps no metadata, so event and user travel in the order id.
func (pc *PaymentClient) CreatePayment(ctx context.Context, req models.PaymentRequest) (*models.PaymentIntent, error) {
	currency := strings.ToUpper(req.Currency)
	params := map[string]string{
		"Amount":   strconv.FormatInt(req.AmountMinor, 10),
		"Currency": currency,
		"OrderId":  req.OrderID,
	}
	body := PaymentInitRequest{
		TeamSlug:    pc.teamSlug,
		Token:       pc.generateToken(params),
		Amount:      req.AmountMinor,
		OrderID:     req.OrderID,
		Currency:    currency,
		Description: req.Description,
		Language:    pc.language,
	}

	var result PaymentInitResponse
	if err := pc.post(ctx, "/api/v1/PaymentInit/init", body, &result); err != nil {
		return nil, fmt.Errorf("failed to init payment: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("payment init failed: %s", result.Message)
	}

	return &models.PaymentIntent{
		Reference:   result.PaymentID,
		RedirectURL: result.PaymentURL,
		AmountMinor: result.Amount,
		Currency:    strings.ToLower(result.Currency),
	}, nil
}

// GetPayment checks the payment and normalises its status. CONFIRMED and
// COMPLETED read as succeeded.
func (pc *PaymentClient) GetPayment(ctx context.Context, paymentID string) (*models.ExternalPayment, error) {
	params := map[string]string{
		"PaymentId": paymentID,
	}
	body := PaymentCheckRequest{
		TeamSlug:  pc.teamSlug,
		Token:     pc.generateToken(params),
		PaymentID: paymentID,
	}

	var result PaymentCheckResponse
	if err := pc.post(ctx, "/api/v1/PaymentCheck/check", body, &result); err != nil {
		return nil, fmt.Errorf("failed to check payment: %w", err)
	}
	if !result.Success || len(result.Payments) == 0 {
		// Шлюз ответил, платежа нет: это ошибка вызывающего, а не шлюза
		return nil, apperrors.Newf(apperrors.KindPaymentNotConfirmed, "payment %s not found", paymentID)
	}

	details := result.Payments[0]
	for _, p := range result.Payments {
		if p.PaymentID == paymentID {
			details = p
			break
		}
	}

	return &models.ExternalPayment{
		Reference:   details.PaymentID,
		Status:      normalizeGatewayStatus(details.Status),
		AmountMinor: details.Amount,
		Currency:    strings.ToLower(details.Currency),
		Metadata:    orderMetadata(details.OrderID),
	}, nil
}

func (pc *PaymentClient) post(ctx context.Context, path string, body, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func normalizeGatewayStatus(status string) string {
	switch strings.ToUpper(status) {
	case "CONFIRMED", "COMPLETED":
		return models.PaymentStatusSucceeded
	case "NEW", "FORM_SHOWED", "AUTHORIZED":
		return "processing"
	default:
		return strings.ToLower(status)
	}
}

// orderMetadata recovers event and user from an order id built by
// models.PaymentOrderID.
func orderMetadata(orderID string) map[string]string {
	parts := strings.Split(orderID, "-")
	if len(parts) != 3 {
		return nil
	}
	for _, p := range parts {
		if _, err := strconv.ParseInt(p, 10, 64); err != nil {
			return nil
		}
	}
	return map[string]string{
		models.PaymentMetaEventID: parts[0],
		models.PaymentMetaUserID:  parts[1],
	}
}
