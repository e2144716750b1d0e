package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the payment provider's HTTP API.  Calls go through a
// circuit breaker so a provider outage degrades into fast failures
// instead of piling up blocked refund passes.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *Breaker
}

// NewClient builds a provider client for the given API base URL and
// key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		breaker: NewBreaker("payment-provider"),
	}
}

type refundRequest struct {
	PaymentReference string `json:"payment_reference"`
	Account          string `json:"account"`
	Reason           string `json:"reason"`
}

type refundResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// IssueRefund asks the provider to return the captured payment to the
// buyer.  Non-2xx responses come back as *ProviderError; transport
// failures and breaker rejections are returned as-is.
func (c *Client) IssueRefund(ctx context.Context, paymentRef, accountRef string) error {
	return c.breaker.Execute(func() error {
		return c.issueRefund(ctx, paymentRef, accountRef)
	})
}

func (c *Client) issueRefund(ctx context.Context, paymentRef, accountRef string) error {
	payload, err := json.Marshal(refundRequest{
		PaymentReference: paymentRef,
		Account:          accountRef,
		Reason:           "requested_by_customer",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/refunds", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("refund request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var body refundResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &body); err != nil {
		body.Message = string(raw)
	}
	return &ProviderError{Status: resp.StatusCode, Code: body.Code, Message: body.Message}
}
