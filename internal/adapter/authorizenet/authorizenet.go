// Package authorizenet implements the Authorize.Net XML API
// (createTransactionRequest).
package authorizenet

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/format"
	"github.com/yourorg/payment-gateway/internal/orchestrator"
	"github.com/yourorg/payment-gateway/internal/response"
	"github.com/yourorg/payment-gateway/internal/token"
	"github.com/yourorg/payment-gateway/internal/transport"
)

const (
	liveURL = "https://api2.authorize.net/xml/v1/request.api"
	testURL = "https://apitest.authorize.net/xml/v1/request.api"

	responseApproved    = "1"
	responseFraudReview = "4"

	defaultWalletDescriptor = "COMMON.APPLE.INAPP.PAYMENT"
	verifyAmount            = 100
)

const (
	actionAuthOnly       = "authOnlyTransaction"
	actionAuthCapture    = "authCaptureTransaction"
	actionPriorAuth      = "priorAuthCaptureTransaction"
	actionRefund         = "refundTransaction"
	actionVoid           = "voidTransaction"
	maskedExpirationDate = "XXXX"
)

// Reference is what a later capture, refund or void needs. Refunds must
// resend the last four digits of the original card.
type Reference struct {
	TransID string
	Last4   string
	Action  string
}

var referenceCodec = token.NewCodec(
	token.MustSchema("authorizenet", "#", token.Required("trans_id"), token.Optional("last4"), token.Required("action")),
	func(r Reference) []string { return []string{r.TransID, r.Last4, r.Action} },
	func(parts []string) (Reference, error) {
		return Reference{TransID: parts[0], Last4: parts[1], Action: parts[2]}, nil
	},
)

// Adapter implements adapter.Gateway for Authorize.Net.
type Adapter struct {
	cfg      adapter.Config
	endpoint string
	client   *transport.Client
	builder  response.Builder
	orch     *orchestrator.Orchestrator
	logger   *zap.Logger
}

var _ adapter.Gateway = (*Adapter)(nil)

// NewAdapter creates an Authorize.Net adapter. cfg.Login is the API login id
// and cfg.Password the transaction key.
func NewAdapter(cfg adapter.Config, client *transport.Client, classifier response.MessageClassifier, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = transport.NewClient(nil, nil, logger)
	}
	if cfg.Name == "" {
		cfg.Name = "authorizenet"
	}
	return &Adapter{
		cfg:      cfg,
		endpoint: cfg.URL(liveURL, testURL),
		client:   client,
		builder:  response.NewBuilder(response.AuthorizeNetReasonCodes, response.ISOCVVCodes, classifier, logger),
		orch:     orchestrator.NewOrchestrator(logger),
		logger:   logger.With(zap.String("gateway", cfg.Name)),
	}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Authorize(ctx context.Context, money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	return a.charge(ctx, actionAuthOnly, money, pm, opts)
}

func (a *Adapter) Purchase(ctx context.Context, money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	return a.charge(ctx, actionAuthCapture, money, pm, opts)
}

func (a *Adapter) Capture(ctx context.Context, money adapter.Money, authorization string, opts adapter.Options) (response.Response, error) {
	ref, err := referenceCodec.Decode(authorization)
	if err != nil {
		return response.Response{}, err
	}
	req := transactionRequest{TransactionType: actionPriorAuth, RefTransID: ref.TransID}
	if money.Cents > 0 {
		req.Amount = format.Dollars(money.Cents)
	}
	return a.commit(ctx, req, opts, ref.Last4)
}

func (a *Adapter) Refund(ctx context.Context, money adapter.Money, authorization string, opts adapter.Options) (response.Response, error) {
	ref, err := referenceCodec.Decode(authorization)
	if err != nil {
		return response.Response{}, err
	}
	req := transactionRequest{
		TransactionType: actionRefund,
		Amount:          format.Dollars(money.Cents),
		Payment: &payment{CreditCard: &creditCard{
			CardNumber:     ref.Last4,
			ExpirationDate: maskedExpirationDate,
		}},
		RefTransID: ref.TransID,
	}
	return a.commit(ctx, req, opts, ref.Last4)
}

func (a *Adapter) Void(ctx context.Context, authorization string, opts adapter.Options) (response.Response, error) {
	ref, err := referenceCodec.Decode(authorization)
	if err != nil {
		return response.Response{}, err
	}
	req := transactionRequest{TransactionType: actionVoid, RefTransID: ref.TransID}
	return a.commit(ctx, req, opts, ref.Last4)
}

// Store is not offered; customer profiles live behind a separate API.
func (a *Adapter) Store(ctx context.Context, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	return adapter.Unsupported(a.cfg.Name, "store"), nil
}

// Verify authorizes a minimal amount and voids it, reporting the authorization.
func (a *Adapter) Verify(ctx context.Context, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	money := adapter.Money{Cents: verifyAmount, Currency: "USD"}
	return a.orch.Run(ctx, orchestrator.UseFirstResponse,
		orchestrator.Process("authorize", func(ctx context.Context, _ orchestrator.Results) (response.Response, error) {
			return a.Authorize(ctx, money, pm, opts)
		}),
		orchestrator.Ignore("void", func(ctx context.Context, prior orchestrator.Results) (response.Response, error) {
			return a.Void(ctx, prior.Authorization(), opts)
		}),
	), nil
}

func (a *Adapter) charge(ctx context.Context, action string, money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	req := transactionRequest{
		TransactionType: action,
		Amount:          format.Dollars(money.Cents),
		CurrencyCode:    strings.ToUpper(money.Currency),
	}
	var last4 string

	switch v := pm.(type) {
	case nil:
		return adapter.Unsupported(a.cfg.Name, "nil payment method"), nil
	case *adapter.CreditCard:
		if err := v.Validate(); err != nil {
			return adapter.InvalidCard(a.cfg.Name, err), nil
		}
		req.Payment = &payment{CreditCard: &creditCard{
			CardNumber:     v.Number,
			ExpirationDate: format.YYYYMM(v.Month, v.Year),
			CardCode:       v.VerificationValue,
		}}
		req.BillTo = &billTo{FirstName: v.FirstName, LastName: v.LastName}
		last4 = v.LastDigits()
	case *adapter.BankAccount:
		req.Payment = &payment{BankAccount: &bankAccount{
			AccountType:   v.AccountType,
			RoutingNumber: v.RoutingNumber,
			AccountNumber: v.AccountNumber,
			NameOnAccount: format.Truncate(v.AccountHolder, 22),
		}}
		if len(v.AccountNumber) >= 4 {
			last4 = v.AccountNumber[len(v.AccountNumber)-4:]
		}
	case *adapter.WalletToken:
		descriptor := v.Descriptor
		if descriptor == "" {
			descriptor = defaultWalletDescriptor
		}
		req.Payment = &payment{OpaqueData: &opaqueData{DataDescriptor: descriptor, DataValue: v.Payload}}
	default:
		return adapter.Unsupported(a.cfg.Name, pm.Kind()), nil
	}

	if opts.OrderID != "" || opts.Description != "" {
		req.Order = &order{InvoiceNumber: format.Truncate(opts.OrderID, 20), Description: format.Truncate(opts.Description, 255)}
	}
	if opts.Email != "" || opts.CustomerID != "" {
		req.Customer = &customer{ID: opts.CustomerID, Email: opts.Email}
	}
	if addr := opts.BillingAddress; addr != nil {
		if req.BillTo == nil {
			req.BillTo = &billTo{}
		}
		req.BillTo.Address = addr.Address1
		req.BillTo.City = addr.City
		req.BillTo.State = addr.State
		req.BillTo.Zip = addr.Zip
		req.BillTo.Country = addr.Country
		req.BillTo.PhoneNumber = addr.Phone
	}
	req.CustomerIP = opts.IP
	return a.commit(ctx, req, opts, last4)
}

func (a *Adapter) commit(ctx context.Context, txn transactionRequest, opts adapter.Options, last4 string) (response.Response, error) {
	doc := createTransactionRequest{
		Xmlns: apiNamespace,
		MerchantAuthentication: merchantAuthentication{
			Name:           a.cfg.Login,
			TransactionKey: a.cfg.Password,
		},
		RefID:              format.Truncate(opts.OrderID, 20),
		TransactionRequest: txn,
	}
	body, err := xml.Marshal(doc)
	if err != nil {
		return response.Failure(fmt.Sprintf("cannot build request: %v", err), response.ProcessingError, nil), nil
	}
	body = append([]byte(xml.Header), body...)

	reply, err := a.client.Post(ctx, a.endpoint, map[string]string{"Content-Type": "text/xml"}, body)
	if err != nil {
		return response.Response{}, err
	}

	var parsed createTransactionResponse
	// Replies may start with a byte-order mark.
	raw := bytes.TrimPrefix(reply.Body, []byte("\xef\xbb\xbf"))
	if err := xml.Unmarshal(raw, &parsed); err != nil || parsed.ResultCode == "" {
		a.logger.Warn("unparseable Authorize.Net reply", zap.Int("status", reply.StatusCode), zap.Error(err))
		return response.Failure("Invalid response received from the Authorize.Net API", response.ProcessingError,
			map[string]any{"raw_response": string(reply.Body), "status": reply.StatusCode}), nil
	}
	return a.translate(txn.TransactionType, parsed, last4), nil
}

func (a *Adapter) translate(action string, parsed createTransactionResponse, last4 string) response.Response {
	params := map[string]any{
		"result_code": parsed.ResultCode,
		"ref_id":      parsed.RefID,
	}
	f := response.Fields{Params: params, Test: a.cfg.Test}
	if len(parsed.Messages) > 0 {
		f.Message = parsed.Messages[0].Text
		f.ErrorCode = parsed.Messages[0].Code
	}

	tr := parsed.Transaction
	if tr == nil {
		// Request-level error, no transaction was attempted.
		f.Success = false
		return a.builder.Build(f)
	}

	params["response_code"] = tr.ResponseCode
	params["auth_code"] = tr.AuthCode
	params["trans_id"] = tr.TransID
	params["account_number"] = tr.AccountNumber

	f.Success = tr.ResponseCode == responseApproved || tr.ResponseCode == responseFraudReview
	f.FraudReview = tr.ResponseCode == responseFraudReview
	f.AVSCode = tr.AVSResultCode
	f.CVVCode = tr.CVVResultCode
	if tr.TestRequest != "" {
		f.Test = tr.TestRequest == "1"
	}

	switch {
	case len(tr.Errors) > 0:
		f.Message = tr.Errors[0].ErrorText
		f.ErrorCode = tr.Errors[0].ErrorCode
	case len(tr.Messages) > 0:
		f.Message = tr.Messages[0].Description
		f.ErrorCode = tr.Messages[0].Code
	}

	if last4 == "" && len(tr.AccountNumber) >= 4 {
		last4 = tr.AccountNumber[len(tr.AccountNumber)-4:]
	}
	if tr.TransID != "" && tr.TransID != "0" {
		if auth, err := referenceCodec.Encode(Reference{TransID: tr.TransID, Last4: last4, Action: action}); err == nil {
			f.Authorization = auth
		}
	}
	return a.builder.Build(f)
}
