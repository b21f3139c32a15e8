package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/format"
	"github.com/yourorg/payment-gateway/internal/orchestrator"
	"github.com/yourorg/payment-gateway/internal/response"
	"github.com/yourorg/payment-gateway/internal/token"
	"github.com/yourorg/payment-gateway/internal/transport"
)

const (
	stripeAPIBaseURL = "https://api.stripe.com/v1"
	verifyAmount     = 100
)

// Reference names the Stripe object a later call acts on.
type Reference struct {
	Object string // "charge" or "refund"
	ID     string
}

// Customer names a stored card. Card is empty when Stripe reported no default source.
type Customer struct {
	ID   string
	Card string
}

var idPrefixes = map[string][]string{
	"charge":   {"ch_", "py_"},
	"refund":   {"re_", "pyr_"},
	"customer": {"cus_"},
}

var (
	// referenceCodec encodes charges and refunds as "<object>|<id>".
	referenceCodec = token.NewCodec(
		token.MustSchema("stripe_reference", "|", token.Required("object"), token.Required("id")),
		func(r Reference) []string { return []string{r.Object, r.ID} },
		func(parts []string) (Reference, error) {
			if err := checkID(parts[0], parts[1]); err != nil {
				return Reference{}, err
			}
			return Reference{Object: parts[0], ID: parts[1]}, nil
		},
	)
	// customerCodec encodes a stored card as "<customer>|<card>".
	customerCodec = token.NewCodec(
		token.MustSchema("stripe_customer", "|", token.Required("customer_id"), token.Optional("card_id")),
		func(c Customer) []string { return []string{c.ID, c.Card} },
		func(parts []string) (Customer, error) {
			if err := checkID("customer", parts[0]); err != nil {
				return Customer{}, err
			}
			return Customer{ID: parts[0], Card: parts[1]}, nil
		},
	)
)

func checkID(object, id string) error {
	prefixes, ok := idPrefixes[object]
	if !ok {
		return fmt.Errorf("unknown object %q", object)
	}
	for _, p := range prefixes {
		if strings.HasPrefix(id, p) {
			return nil
		}
	}
	return fmt.Errorf("%s id %q has an unexpected prefix", object, id)
}

// chargeID decodes authorization and requires it to reference a charge.
func chargeID(authorization string) (string, error) {
	ref, err := referenceCodec.Decode(authorization)
	if err != nil {
		return "", err
	}
	if ref.Object != "charge" {
		return "", &token.DecodeError{
			Schema: referenceCodec.Schema.Name,
			Token:  authorization,
			Reason: ref.Object + " references cannot be captured, refunded or voided",
		}
	}
	return ref.ID, nil
}

// encodeReference builds the token for a charge or refund id.
func encodeReference(id string) (string, error) {
	object := "charge"
	if strings.HasPrefix(id, "re_") || strings.HasPrefix(id, "pyr_") {
		object = "refund"
	}
	return referenceCodec.Encode(Reference{Object: object, ID: id})
}

// StripeAdapter implements adapter.Gateway for Stripe's form-encoded API.
type StripeAdapter struct {
	name       string
	apiBaseURL string
	secretKey  string
	test       bool
	client     *transport.Client
	builder    response.Builder
	orch       *orchestrator.Orchestrator
	logger     *zap.Logger
}

var _ adapter.Gateway = (*StripeAdapter)(nil)

// NewStripeAdapter creates a new StripeAdapter. cfg.Password is the secret
// key; cfg.Endpoint overrides the API base URL.
func NewStripeAdapter(cfg adapter.Config, client *transport.Client, classifier response.MessageClassifier, logger *zap.Logger) *StripeAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = transport.NewClient(nil, nil, logger)
	}
	name := cfg.Name
	if name == "" {
		name = "stripe"
	}
	return &StripeAdapter{
		name:       name,
		apiBaseURL: strings.TrimRight(cfg.URL(stripeAPIBaseURL, stripeAPIBaseURL), "/"),
		secretKey:  cfg.Password,
		test:       cfg.Test,
		client:     client,
		builder:    response.NewBuilder(response.DeclineCodes, response.PassFailCVV, classifier, logger),
		orch:       orchestrator.NewOrchestrator(logger),
		logger:     logger.With(zap.String("gateway", name)),
	}
}

// Name returns the name of the provider.
func (s *StripeAdapter) Name() string {
	return s.name
}

// generateIdempotencyKey creates a unique key for a mutating Stripe request.
func generateIdempotencyKey(orderID string) string {
	key := uuid.NewString()
	if orderID != "" {
		key = orderID + "-" + key
	}
	if len(key) > 255 { // Stripe max length for idempotency key
		return key[:255]
	}
	return key
}

func (s *StripeAdapter) Authorize(ctx context.Context, money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	payload, unsupported := s.buildChargePayload(money, pm, opts)
	if unsupported != nil {
		return *unsupported, nil
	}
	payload.Set("capture", "false")
	return s.commit(ctx, "/charges", payload, opts, parseCharge)
}

func (s *StripeAdapter) Purchase(ctx context.Context, money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	payload, unsupported := s.buildChargePayload(money, pm, opts)
	if unsupported != nil {
		return *unsupported, nil
	}
	return s.commit(ctx, "/charges", payload, opts, parseCharge)
}

func (s *StripeAdapter) Capture(ctx context.Context, money adapter.Money, authorization string, opts adapter.Options) (response.Response, error) {
	id, err := chargeID(authorization)
	if err != nil {
		return response.Response{}, err
	}
	payload := url.Values{}
	if money.Cents > 0 {
		payload.Set("amount", format.Cents(money.Cents))
	}
	return s.commit(ctx, "/charges/"+url.PathEscape(id)+"/capture", payload, opts, parseCharge)
}

func (s *StripeAdapter) Refund(ctx context.Context, money adapter.Money, authorization string, opts adapter.Options) (response.Response, error) {
	id, err := chargeID(authorization)
	if err != nil {
		return response.Response{}, err
	}
	payload := url.Values{}
	payload.Set("charge", id)
	if money.Cents > 0 {
		payload.Set("amount", format.Cents(money.Cents))
	}
	addMetadata(payload, opts)
	return s.commit(ctx, "/refunds", payload, opts, parseCharge)
}

// Void releases an uncaptured charge by refunding it in full.
func (s *StripeAdapter) Void(ctx context.Context, authorization string, opts adapter.Options) (response.Response, error) {
	id, err := chargeID(authorization)
	if err != nil {
		return response.Response{}, err
	}
	payload := url.Values{}
	payload.Set("charge", id)
	return s.commit(ctx, "/refunds", payload, opts, parseCharge)
}

func (s *StripeAdapter) Store(ctx context.Context, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	payload := url.Values{}
	switch v := pm.(type) {
	case nil:
		return adapter.Unsupported(s.name, "nil payment method"), nil
	case *adapter.CreditCard:
		if err := v.Validate(); err != nil {
			return adapter.InvalidCard(s.name, err), nil
		}
		addCard(payload, "source", v)
	case *adapter.WalletToken:
		payload.Set("source", v.Payload)
	default:
		return adapter.Unsupported(s.name, "storing "+pm.Kind()), nil
	}
	if opts.Description != "" {
		payload.Set("description", opts.Description)
	}
	if opts.Email != "" {
		payload.Set("email", opts.Email)
	}
	addMetadata(payload, opts)
	return s.commit(ctx, "/customers", payload, opts, parseCustomer)
}

// Verify authorizes a minimal amount and voids it, reporting the authorization.
func (s *StripeAdapter) Verify(ctx context.Context, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	money := adapter.Money{Cents: verifyAmount, Currency: "usd"}
	return s.orch.Run(ctx, orchestrator.UseFirstResponse,
		orchestrator.Process("authorize", func(ctx context.Context, _ orchestrator.Results) (response.Response, error) {
			return s.Authorize(ctx, money, pm, opts)
		}),
		orchestrator.Ignore("void", func(ctx context.Context, prior orchestrator.Results) (response.Response, error) {
			return s.Void(ctx, prior.Authorization(), opts)
		}),
	), nil
}

// buildChargePayload creates the request body for a Stripe charge. A non-nil
// response is returned for payment methods Stripe charges cannot take.
func (s *StripeAdapter) buildChargePayload(money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (url.Values, *response.Response) {
	payload := url.Values{}
	payload.Set("amount", format.Cents(money.Cents)) // Stripe expects the smallest currency unit
	payload.Set("currency", strings.ToLower(money.Currency))

	switch v := pm.(type) {
	case nil:
		r := adapter.Unsupported(s.name, "nil payment method")
		return nil, &r
	case *adapter.CreditCard:
		if err := v.Validate(); err != nil {
			r := adapter.InvalidCard(s.name, err)
			return nil, &r
		}
		addCard(payload, "source", v)
		addAddress(payload, "source", opts.BillingAddress)
	case adapter.StoredToken:
		cust, err := customerCodec.Decode(string(v))
		if err != nil {
			r := response.FromError(err)
			return nil, &r
		}
		payload.Set("customer", cust.ID)
		if cust.Card != "" {
			payload.Set("source", cust.Card)
		}
	case *adapter.WalletToken:
		payload.Set("source", v.Payload)
	default:
		r := adapter.Unsupported(s.name, pm.Kind())
		return nil, &r
	}

	if opts.Description != "" {
		payload.Set("description", opts.Description)
	}
	if opts.Email != "" {
		payload.Set("receipt_email", opts.Email)
	}
	addMetadata(payload, opts)
	return payload, nil
}

func addCard(payload url.Values, prefix string, card *adapter.CreditCard) {
	payload.Set(prefix+"[object]", "card")
	payload.Set(prefix+"[number]", card.Number)
	payload.Set(prefix+"[exp_month]", strconv.Itoa(card.Month))
	payload.Set(prefix+"[exp_year]", format.Year4(card.Year))
	if card.VerificationValue != "" {
		payload.Set(prefix+"[cvc]", card.VerificationValue)
	}
	if name := card.Name(); name != "" {
		payload.Set(prefix+"[name]", name)
	}
}

func addAddress(payload url.Values, prefix string, addr *adapter.Address) {
	if addr == nil {
		return
	}
	payload.Set(prefix+"[address_line1]", addr.Address1)
	payload.Set(prefix+"[address_line2]", addr.Address2)
	payload.Set(prefix+"[address_city]", addr.City)
	payload.Set(prefix+"[address_state]", addr.State)
	payload.Set(prefix+"[address_zip]", addr.Zip)
	payload.Set(prefix+"[address_country]", addr.Country)
}

func addMetadata(payload url.Values, opts adapter.Options) {
	if opts.OrderID != "" {
		payload.Set("metadata[order_id]", opts.OrderID)
	}
	for k, v := range opts.Metadata {
		payload.Set("metadata["+k+"]", v)
	}
}

// StripeErrorResponse represents the error structure from Stripe API
type StripeErrorResponse struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		Message     string `json:"message"`
		DeclineCode string `json:"decline_code"`
		Charge      string `json:"charge"`
	} `json:"error"`
}

// parser extracts the authorization and verification signals of a successful
// reply into f.
type parser func(body map[string]any, f *response.Fields) error

func (s *StripeAdapter) commit(ctx context.Context, path string, payload url.Values, opts adapter.Options, parse parser) (response.Response, error) {
	headers := map[string]string{
		"Authorization":   "Bearer " + s.secretKey,
		"Content-Type":    "application/x-www-form-urlencoded",
		"Idempotency-Key": generateIdempotencyKey(opts.OrderID),
	}
	reply, err := s.client.Post(ctx, s.apiBaseURL+path, headers, []byte(payload.Encode()))
	if err != nil {
		return response.Response{}, err
	}

	var body map[string]any
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		s.logger.Warn("invalid JSON from Stripe", zap.Int("status", reply.StatusCode), zap.Error(err))
		return response.Failure(
			fmt.Sprintf("Invalid response received from the Stripe API (HTTP %d)", reply.StatusCode),
			response.ProcessingError,
			map[string]any{"raw_response": string(reply.Body), "status": reply.StatusCode},
		), nil
	}

	if _, failed := body["error"]; failed {
		return s.failure(reply.Body, body)
	}

	f := response.Fields{
		Success: true,
		Message: "Transaction approved",
		Params:  body,
		Test:    s.test,
	}
	if live, ok := body["livemode"].(bool); ok {
		f.Test = !live
	}
	if err := parse(body, &f); err != nil {
		return response.FromError(err), nil
	}
	return s.builder.Build(f), nil
}

func (s *StripeAdapter) failure(raw []byte, body map[string]any) (response.Response, error) {
	var errResp StripeErrorResponse
	if err := json.Unmarshal(raw, &errResp); err != nil {
		return response.Failure("Unparseable Stripe error", response.ProcessingError, body), nil
	}
	code := errResp.Error.Code
	if errResp.Error.DeclineCode != "" {
		code = errResp.Error.DeclineCode
	}
	f := response.Fields{
		Success:   false,
		Message:   errResp.Error.Message,
		Params:    body,
		ErrorCode: code,
		Test:      s.test,
	}
	if errResp.Error.Charge != "" {
		if auth, err := encodeReference(errResp.Error.Charge); err == nil {
			f.Authorization = auth
		}
	}
	s.logger.Debug("stripe declined",
		zap.String("type", errResp.Error.Type),
		zap.String("code", code))
	return s.builder.Build(f), nil
}

func parseCharge(body map[string]any, f *response.Fields) error {
	id, _ := body["id"].(string)
	if id != "" {
		auth, err := encodeReference(id)
		if err != nil {
			return err
		}
		f.Authorization = auth
	}
	if status, _ := body["status"].(string); status != "" {
		f.Message = "Transaction " + status
	}
	if source, ok := body["source"].(map[string]any); ok {
		f.AVSStreet, _ = source["address_line1_check"].(string)
		f.AVSPostal, _ = source["address_zip_check"].(string)
		f.CVVCode, _ = source["cvc_check"].(string)
	}
	if outcome, ok := body["outcome"].(map[string]any); ok {
		f.FraudReview = outcome["type"] == "manual_review"
	}
	if review, ok := body["review"].(string); ok && review != "" {
		f.FraudReview = true
	}
	return nil
}

func parseCustomer(body map[string]any, f *response.Fields) error {
	id, _ := body["id"].(string)
	card, _ := body["default_source"].(string)
	if card == "" {
		if sources, ok := body["sources"].(map[string]any); ok {
			if data, ok := sources["data"].([]any); ok && len(data) > 0 {
				if first, ok := data[0].(map[string]any); ok {
					card, _ = first["id"].(string)
					f.CVVCode, _ = first["cvc_check"].(string)
				}
			}
		}
	}
	f.Message = "Customer created"
	if id == "" {
		return nil
	}
	auth, err := customerCodec.Encode(Customer{ID: id, Card: card})
	if err != nil {
		return err
	}
	f.Authorization = auth
	return nil
}
