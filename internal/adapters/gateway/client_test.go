package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

type fakeServer struct {
	tokenCalls atomic.Int32
	handler    http.HandlerFunc
}

func newTestClient(t *testing.T, fs *fakeServer) (*Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := fs.tokenCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-" + string(rune('0'+n)),
			"expires_in":   "3599",
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { fs.handler(w, r) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		BaseURL:               srv.URL,
		ClientID:              "client",
		ClientSecret:          "secret",
		CollectionCallbackURL: "https://escrow.example/webhooks/v1/collections/callback",
		Timeout:               2 * time.Second,
	})
	require.NoError(t, err)
	return client, srv
}

func TestRequestCollectionReusesToken(t *testing.T) {
	var seen []string
	fs := &fakeServer{}
	fs.handler = func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "1500.00", body["amount"])
		assert.Equal(t, "https://escrow.example/webhooks/v1/collections/callback", body["callback_url"])
		_ = json.NewEncoder(w).Encode(map[string]string{
			"checkout_request_id":  "ws_CO_1",
			"merchant_request_id":  "m-1",
			"response_code":        "0",
			"response_description": "Success",
		})
	}
	client, _ := newTestClient(t, fs)

	for i := 0; i < 2; i++ {
		resp, err := client.RequestCollection(context.Background(), ports.CollectionRequest{
			PhoneNumber: "254700000001",
			Amount:      decimal.RequireFromString("1500"),
		})
		require.NoError(t, err)
		assert.Equal(t, "ws_CO_1", resp.CheckoutRequestID)
		assert.Equal(t, "0", resp.ResponseCode)
	}
	assert.Equal(t, int32(1), fs.tokenCalls.Load())
	assert.Equal(t, []string{"Bearer token-1", "Bearer token-1"}, seen)
}

func TestTokenRefreshedBeforeExpiry(t *testing.T) {
	fs := &fakeServer{handler: func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"b2c_request_id": "AG_1", "response_code": "0"})
	}}
	client, _ := newTestClient(t, fs)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	client.nowFn = func() time.Time { return now }

	req := ports.DisburseRequest{MerchantReference: "ref-1", ReceiverNumber: "254711111111", Amount: decimal.NewFromInt(10)}
	_, err := client.Disburse(context.Background(), req)
	require.NoError(t, err)

	now = now.Add(3599*time.Second - 30*time.Second)
	_, err = client.Disburse(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fs.tokenCalls.Load())
}

func TestUnauthorizedRetriesWithFreshToken(t *testing.T) {
	var calls atomic.Int32
	fs := &fakeServer{}
	fs.handler = func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer token-2", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"b2c_request_id": "AG_2", "response_code": "0"})
	}
	client, _ := newTestClient(t, fs)

	resp, err := client.Disburse(context.Background(), ports.DisburseRequest{MerchantReference: "ref", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, "AG_2", resp.B2CRequestID)
}

func TestStatusCodesMapToDomainErrors(t *testing.T) {
	cases := map[int]error{
		http.StatusInternalServerError: domain.ErrGatewayUnavailable,
		http.StatusTooManyRequests:     domain.ErrGatewayUnavailable,
		http.StatusBadRequest:          domain.ErrGatewayRejected,
	}
	for status, want := range cases {
		fs := &fakeServer{handler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}}
		client, _ := newTestClient(t, fs)
		_, err := client.QueryStatus(context.Background(), "ws_CO_1")
		require.ErrorIs(t, err, want, "status %d", status)
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	fs := &fakeServer{handler: func(http.ResponseWriter, *http.Request) {}}
	client, srv := newTestClient(t, fs)
	srv.Close()

	_, err := client.RequestCollection(context.Background(), ports.CollectionRequest{Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestQueryStatusPendingAndFinal(t *testing.T) {
	body := `{"status":"pending"}`
	fs := &fakeServer{}
	fs.handler = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/ws_CO_9", r.URL.Path)
		_, _ = w.Write([]byte(body))
	}
	client, _ := newTestClient(t, fs)

	status, err := client.QueryStatus(context.Background(), "ws_CO_9")
	require.NoError(t, err)
	assert.True(t, status.Pending)

	body = `{"status":"failed","result_code":1032,"result_desc":"Request cancelled by user"}`
	status, err = client.QueryStatus(context.Background(), "ws_CO_9")
	require.NoError(t, err)
	assert.False(t, status.Pending)
	assert.Equal(t, 1032, status.ResultCode)
	assert.JSONEq(t, body, string(status.RawPayload))
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "not a url", ClientID: "a", ClientSecret: "b"})
	require.Error(t, err)
	_, err = NewClient(Config{BaseURL: "https://gateway.example"})
	require.Error(t, err)
}
