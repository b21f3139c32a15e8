package nmi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/response"
	"github.com/yourorg/payment-gateway/internal/token"
	"github.com/yourorg/payment-gateway/internal/transport"
)

var usd = adapter.Money{Cents: 1000, Currency: "USD"}

func testCard() *adapter.CreditCard {
	return &adapter.CreditCard{Number: "4111111111111111", Month: 10, Year: 2030, VerificationValue: "999", FirstName: "Longbob", LastName: "Longsen"}
}

type fakeNMI struct {
	mu       sync.Mutex
	requests []url.Values
	reply    func(form url.Values) string
}

func (f *fakeNMI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(body))
	f.mu.Lock()
	f.requests = append(f.requests, form)
	f.mu.Unlock()
	io.WriteString(w, f.reply(form))
}

func newTestAdapter(t *testing.T, reply func(form url.Values) string) (*Adapter, *fakeNMI) {
	t.Helper()
	fake := &fakeNMI{reply: reply}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	cfg := adapter.Config{Login: "demo", Password: "password", Test: true, Endpoint: server.URL}
	return NewAdapter(cfg, transport.NewClient(server.Client(), nil, nil), nil, nil), fake
}

func TestNewAdapter_Endpoints(t *testing.T) {
	live := NewAdapter(adapter.Config{}, nil, nil, nil)
	assert.Equal(t, liveURL, live.endpoint)
	assert.Equal(t, "nmi", live.Name())

	sandbox := NewAdapter(adapter.Config{Test: true}, nil, nil, nil)
	assert.Equal(t, testURL, sandbox.endpoint)
}

func TestAuthorize_Approved(t *testing.T) {
	a, fake := newTestAdapter(t, func(form url.Values) string {
		return "response=1&responsetext=SUCCESS&authcode=123456&transactionid=7001&avsresponse=Y&cvvresponse=M&response_code=100"
	})

	res, err := a.Authorize(context.Background(), usd, testCard(), adapter.Options{OrderID: "1", BillingAddress: &adapter.Address{Zip: "77777"}})
	require.NoError(t, err)

	form := fake.requests[0]
	assert.Equal(t, "auth", form.Get("type"))
	assert.Equal(t, "10.00", form.Get("amount"))
	assert.Equal(t, "1030", form.Get("ccexp"))
	assert.Equal(t, "999", form.Get("cvv"))
	assert.Equal(t, "77777", form.Get("zip"))
	assert.Equal(t, "demo", form.Get("username"))

	assert.True(t, res.Success)
	assert.True(t, res.Test)
	assert.Equal(t, "SUCCESS", res.Message)
	assert.Equal(t, "7001|auth|10.00", res.Authorization)
	assert.Equal(t, response.AVSCode("Y"), res.AVSResult.Code)
	assert.Equal(t, response.CVVMatch, res.CVVResult.Code)
	assert.Equal(t, "123456", res.Param("authcode"))
}

func TestPurchase_Declined(t *testing.T) {
	a, _ := newTestAdapter(t, func(form url.Values) string {
		return "response=2&responsetext=DECLINE&transactionid=7002&avsresponse=N&cvvresponse=N&response_code=202"
	})

	res, err := a.Purchase(context.Background(), usd, testCard(), adapter.Options{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, response.InsufficientFunds, res.ErrorCode)
	assert.Equal(t, "7002|sale|10.00", res.Authorization)
	assert.Equal(t, response.CVVNoMatch, res.CVVResult.Code)
}

func TestPurchase_NoVerificationSignals(t *testing.T) {
	a, _ := newTestAdapter(t, func(form url.Values) string {
		return "response=3&responsetext=Invalid+Username&response_code=300"
	})

	res, err := a.Purchase(context.Background(), usd, testCard(), adapter.Options{})
	require.NoError(t, err)
	assert.Equal(t, response.ProcessingError, res.ErrorCode)
	assert.Nil(t, res.AVSResult)
	assert.Nil(t, res.CVVResult)
	assert.False(t, res.HasAuthorization())
}

func TestCapture_DefaultsToAuthorizedAmount(t *testing.T) {
	a, fake := newTestAdapter(t, func(form url.Values) string {
		return "response=1&responsetext=SUCCESS&transactionid=" + form.Get("transactionid")
	})
	ctx := context.Background()

	res, err := a.Capture(ctx, adapter.Money{}, "7001|auth|10.00", adapter.Options{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "7001|capture|10.00", res.Authorization)

	_, err = a.Refund(ctx, adapter.Money{Cents: 250, Currency: "USD"}, res.Authorization, adapter.Options{})
	require.NoError(t, err)

	assert.Equal(t, "capture", fake.requests[0].Get("type"))
	assert.Equal(t, "10.00", fake.requests[0].Get("amount"))
	assert.Equal(t, "refund", fake.requests[1].Get("type"))
	assert.Equal(t, "2.50", fake.requests[1].Get("amount"))
}

func TestVoid_MalformedToken(t *testing.T) {
	a, fake := newTestAdapter(t, func(form url.Values) string { return "response=1" })

	_, err := a.Void(context.Background(), "not-a-valid-token", adapter.Options{})
	var decodeErr *token.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "nmi", decodeErr.Schema)
	assert.True(t, errors.Is(err, token.ErrMalformed))
	assert.Empty(t, fake.requests)
}

func TestReference_ForeignTokens(t *testing.T) {
	a, fake := newTestAdapter(t, func(form url.Values) string { return "response=1" })
	ctx := context.Background()

	foreign := []string{
		"vault|555",                           // stored customer, not a transaction
		"charge|ch_123",                       // Stripe
		"2149186848#1111#authOnlyTransaction", // Authorize.Net
		"53433|authorize|1000|x",              // too many segments
		"7001|authorize|10.00",                // unknown transaction type
		"7001|auth|ten",                       // amount is not numeric
	}
	for _, tok := range foreign {
		_, err := a.Capture(ctx, usd, tok, adapter.Options{})
		assert.True(t, errors.Is(err, token.ErrMalformed), "capture %q", tok)
		_, err = a.Refund(ctx, usd, tok, adapter.Options{})
		assert.True(t, errors.Is(err, token.ErrMalformed), "refund %q", tok)
		_, err = a.Void(ctx, tok, adapter.Options{})
		var decodeErr *token.DecodeError
		require.ErrorAs(t, err, &decodeErr, "void %q", tok)
		assert.Equal(t, "nmi", decodeErr.Schema)
	}
	assert.Empty(t, fake.requests)
}

func TestNilAndInvalidPaymentMethods(t *testing.T) {
	a, fake := newTestAdapter(t, func(form url.Values) string { return "response=1" })
	ctx := context.Background()

	res, err := a.Purchase(ctx, usd, nil, adapter.Options{})
	require.NoError(t, err)
	assert.Equal(t, response.UnsupportedFeature, res.ErrorCode)

	res, err = a.Store(ctx, nil, adapter.Options{})
	require.NoError(t, err)
	assert.Equal(t, response.UnsupportedFeature, res.ErrorCode)

	res, err = a.Verify(ctx, nil, adapter.Options{})
	require.NoError(t, err)
	assert.Equal(t, response.UnsupportedFeature, res.ErrorCode)

	bad := testCard()
	bad.Number = "4111x"
	res, err = a.Authorize(ctx, usd, bad, adapter.Options{})
	require.NoError(t, err)
	assert.Equal(t, response.InvalidNumber, res.ErrorCode)

	bad = testCard()
	bad.Year = 30
	res, err = a.Verify(ctx, bad, adapter.Options{})
	require.NoError(t, err)
	assert.Equal(t, response.InvalidExpiryDate, res.ErrorCode)

	assert.Empty(t, fake.requests)
}

func TestBankAccount_CheckFlowsThroughToken(t *testing.T) {
	a, fake := newTestAdapter(t, func(form url.Values) string {
		return "response=1&responsetext=SUCCESS&transactionid=8001"
	})
	ctx := context.Background()
	account := &adapter.BankAccount{RoutingNumber: "123123123", AccountNumber: "123123123", AccountType: "checking", AccountHolder: "Jim Smith"}

	res, err := a.Purchase(ctx, usd, account, adapter.Options{})
	require.NoError(t, err)
	assert.Equal(t, "8001|check|10.00", res.Authorization)

	_, err = a.Void(ctx, res.Authorization, adapter.Options{})
	require.NoError(t, err)

	assert.Equal(t, "check", fake.requests[0].Get("payment"))
	assert.Equal(t, "123123123", fake.requests[0].Get("checkaba"))
	assert.Equal(t, "check", fake.requests[1].Get("payment"))
	assert.Equal(t, "8001", fake.requests[1].Get("transactionid"))
}

func TestStore_VaultToken(t *testing.T) {
	a, fake := newTestAdapter(t, func(form url.Values) string {
		if form.Get("customer_vault") == "add_customer" {
			return "response=1&responsetext=Customer+Added&customer_vault_id=555"
		}
		return "response=1&responsetext=SUCCESS&transactionid=9001"
	})
	ctx := context.Background()

	stored, err := a.Store(ctx, testCard(), adapter.Options{})
	require.NoError(t, err)
	assert.Equal(t, "vault|555", stored.Authorization)

	res, err := a.Purchase(ctx, usd, adapter.StoredToken(stored.Authorization), adapter.Options{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "555", fake.requests[1].Get("customer_vault_id"))
	assert.Empty(t, fake.requests[1].Get("ccnumber"))

	for _, foreign := range []string{"7001|auth|10.00", "555", "cus_9|card_7", "charge|ch_1", "vault_0001", "vault|"} {
		res, err = a.Purchase(ctx, usd, adapter.StoredToken(foreign), adapter.Options{})
		require.NoError(t, err)
		assert.Equal(t, response.InvalidAuthorization, res.ErrorCode, foreign)
	}
	assert.Len(t, fake.requests, 2)
}

func TestVerify_UsesValidate(t *testing.T) {
	a, fake := newTestAdapter(t, func(form url.Values) string {
		return "response=1&responsetext=SUCCESS&transactionid=9100&cvvresponse=M"
	})

	res, err := a.Verify(context.Background(), testCard(), adapter.Options{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, fake.requests, 1)
	assert.Equal(t, "validate", fake.requests[0].Get("type"))
	assert.Equal(t, "0.00", fake.requests[0].Get("amount"))

	res, err = a.Verify(context.Background(), &adapter.BankAccount{}, adapter.Options{})
	require.NoError(t, err)
	assert.Equal(t, response.UnsupportedFeature, res.ErrorCode)
}

func TestUnparseableReply(t *testing.T) {
	a, _ := newTestAdapter(t, func(form url.Values) string { return "" })

	res, err := a.Purchase(context.Background(), usd, testCard(), adapter.Options{})
	require.NoError(t, err)
	assert.Equal(t, response.ProcessingError, res.ErrorCode)
}

func TestWallet(t *testing.T) {
	a, fake := newTestAdapter(t, func(form url.Values) string {
		return "response=1&responsetext=SUCCESS&transactionid=9200"
	})
	ctx := context.Background()

	res, err := a.Purchase(ctx, usd, &adapter.WalletToken{Source: "apple_pay", Payload: "encrypted"}, adapter.Options{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "encrypted", fake.requests[0].Get("applepay_payment_data"))

	res, err = a.Purchase(ctx, usd, &adapter.WalletToken{Source: "google_pay"}, adapter.Options{})
	require.NoError(t, err)
	assert.Equal(t, response.UnsupportedFeature, res.ErrorCode)
}
