package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueRefundSendsSignedRequest(t *testing.T) {
	var got refundRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/refunds", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_test")
	err := c.IssueRefund(context.Background(), "pay_123", "acct_9")
	require.NoError(t, err)

	assert.Equal(t, "Bearer key_test", gotAuth)
	assert.Equal(t, "pay_123", got.PaymentReference)
	assert.Equal(t, "acct_9", got.Account)
	assert.Equal(t, "requested_by_customer", got.Reason)
}

func TestIssueRefundReturnsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(refundResponse{Code: "charge_already_refunded", Message: "already refunded"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_test")
	err := c.IssueRefund(context.Background(), "pay_123", "acct_9")

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusPaymentRequired, perr.Status)
	assert.Equal(t, "charge_already_refunded", perr.Code)
}

func TestIssueRefundHonoursContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, "key_test")
	err := c.IssueRefund(ctx, "pay_123", "acct_9")
	assert.Error(t, err)
}
