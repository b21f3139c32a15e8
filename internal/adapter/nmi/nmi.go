// Package nmi implements the NMI direct-post API: form-encoded requests and
// replies against a single transact endpoint.
package nmi

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/format"
	"github.com/yourorg/payment-gateway/internal/response"
	"github.com/yourorg/payment-gateway/internal/token"
	"github.com/yourorg/payment-gateway/internal/transport"
)

const (
	liveURL = "https://secure.nmi.com/api/transact.php"
	testURL = "https://sandbox.nmi.com/api/transact.php"

	approved = "1"
)

// Transaction types sent in the "type" field.
const (
	typeAuth     = "auth"
	typeSale     = "sale"
	typeCapture  = "capture"
	typeRefund   = "refund"
	typeVoid     = "void"
	typeValidate = "validate"
)

// Transaction is what a later capture, refund or void needs.
type Transaction struct {
	ID     string
	Type   string
	Amount string // Decimal amount as sent; empty when unknown
}

// Vault is a customer vault entry created by Store.
type Vault struct {
	ID string
}

// transactionKinds are the kinds commit records in a transaction token.
var transactionKinds = map[string]bool{
	typeAuth: true, typeSale: true, typeCapture: true, typeRefund: true,
	typeVoid: true, typeValidate: true, "check": true, "store": true,
}

var (
	transactionCodec = token.NewCodec(
		token.MustSchema("nmi", "|", token.Required("transaction_id"), token.Required("type"), token.Optional("amount")),
		func(t Transaction) []string { return []string{t.ID, t.Type, t.Amount} },
		func(parts []string) (Transaction, error) {
			if !transactionKinds[parts[1]] {
				return Transaction{}, fmt.Errorf("unknown transaction type %q", parts[1])
			}
			if parts[2] != "" {
				// Amounts are stored as sent: whole units or two decimals.
				if _, err := format.ParseAmount(parts[2], ""); err != nil {
					return Transaction{}, err
				}
			}
			return Transaction{ID: parts[0], Type: parts[1], Amount: parts[2]}, nil
		},
	)
	// vaultCodec encodes a vault entry as "vault|<customer_vault_id>".
	vaultCodec = token.NewCodec(
		token.MustSchema("nmi_vault", "|", token.Required("kind"), token.Required("customer_vault_id")),
		func(v Vault) []string { return []string{"vault", v.ID} },
		func(parts []string) (Vault, error) {
			if parts[0] != "vault" {
				return Vault{}, fmt.Errorf("%q is not a vault reference", parts[0])
			}
			return Vault{ID: parts[1]}, nil
		},
	)
)

// Adapter implements adapter.Gateway for NMI.
type Adapter struct {
	cfg      adapter.Config
	endpoint string
	client   *transport.Client
	builder  response.Builder
	logger   *zap.Logger
}

var _ adapter.Gateway = (*Adapter)(nil)

// NewAdapter creates an NMI adapter. cfg.Login and cfg.Password are the API
// username and password.
func NewAdapter(cfg adapter.Config, client *transport.Client, classifier response.MessageClassifier, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = transport.NewClient(nil, nil, logger)
	}
	if cfg.Name == "" {
		cfg.Name = "nmi"
	}
	return &Adapter{
		cfg:      cfg,
		endpoint: cfg.URL(liveURL, testURL),
		client:   client,
		builder:  response.NewBuilder(response.NMIResponseCodes, response.ISOCVVCodes, classifier, logger),
		logger:   logger.With(zap.String("gateway", cfg.Name)),
	}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Authorize(ctx context.Context, money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	return a.charge(ctx, typeAuth, money, pm, opts)
}

func (a *Adapter) Purchase(ctx context.Context, money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	return a.charge(ctx, typeSale, money, pm, opts)
}

// Capture settles an authorization. A zero amount captures the authorized amount.
func (a *Adapter) Capture(ctx context.Context, money adapter.Money, authorization string, opts adapter.Options) (response.Response, error) {
	return a.reference(ctx, typeCapture, money, authorization, opts)
}

// Refund returns money from a settled sale or capture. A zero amount refunds in full.
func (a *Adapter) Refund(ctx context.Context, money adapter.Money, authorization string, opts adapter.Options) (response.Response, error) {
	return a.reference(ctx, typeRefund, money, authorization, opts)
}

func (a *Adapter) Void(ctx context.Context, authorization string, opts adapter.Options) (response.Response, error) {
	txn, err := transactionCodec.Decode(authorization)
	if err != nil {
		return response.Response{}, err
	}
	form := a.newForm(typeVoid)
	form.Set("transactionid", txn.ID)
	if txn.Type == "check" {
		form.Set("payment", "check")
	}
	return a.commit(ctx, typeVoid, form, "")
}

// Store adds the instrument to the customer vault.
func (a *Adapter) Store(ctx context.Context, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	form := url.Values{}
	form.Set("username", a.cfg.Login)
	form.Set("password", a.cfg.Password)
	form.Set("customer_vault", "add_customer")
	if res := a.addPaymentMethod(form, pm, true); res != nil {
		return *res, nil
	}
	addCustomer(form, opts)
	return a.commit(ctx, "store", form, "")
}

// Verify uses NMI's native zero-amount validate transaction.
func (a *Adapter) Verify(ctx context.Context, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	switch pm.(type) {
	case *adapter.CreditCard:
	case nil:
		return adapter.Unsupported(a.cfg.Name, "nil payment method"), nil
	default:
		return adapter.Unsupported(a.cfg.Name, "verifying "+pm.Kind()), nil
	}
	return a.charge(ctx, typeValidate, adapter.Money{Currency: "USD"}, pm, opts)
}

func (a *Adapter) newForm(txType string) url.Values {
	form := url.Values{}
	form.Set("username", a.cfg.Login)
	form.Set("password", a.cfg.Password)
	form.Set("type", txType)
	return form
}

func (a *Adapter) charge(ctx context.Context, txType string, money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	form := a.newForm(txType)
	amount := format.Amount(money.Cents, money.Currency)
	form.Set("amount", amount)
	if money.Currency != "" {
		form.Set("currency", strings.ToUpper(money.Currency))
	}
	if res := a.addPaymentMethod(form, pm, false); res != nil {
		return *res, nil
	}
	addCustomer(form, opts)

	kind := txType
	if form.Get("payment") == "check" {
		kind = "check"
	}
	return a.commit(ctx, kind, form, amount)
}

func (a *Adapter) reference(ctx context.Context, txType string, money adapter.Money, authorization string, opts adapter.Options) (response.Response, error) {
	txn, err := transactionCodec.Decode(authorization)
	if err != nil {
		return response.Response{}, err
	}
	form := a.newForm(txType)
	form.Set("transactionid", txn.ID)
	amount := txn.Amount
	if money.Cents > 0 {
		amount = format.Amount(money.Cents, money.Currency)
	}
	if amount != "" {
		form.Set("amount", amount)
	}
	kind := txType
	if txn.Type == "check" {
		form.Set("payment", "check")
		kind = "check"
	}
	if opts.OrderID != "" {
		form.Set("orderid", opts.OrderID)
	}
	return a.commit(ctx, kind, form, amount)
}

// addPaymentMethod writes the instrument fields. A non-nil response means the
// instrument cannot be used.
func (a *Adapter) addPaymentMethod(form url.Values, pm adapter.PaymentMethod, storing bool) *response.Response {
	switch v := pm.(type) {
	case nil:
		r := adapter.Unsupported(a.cfg.Name, "nil payment method")
		return &r
	case *adapter.CreditCard:
		if err := v.Validate(); err != nil {
			r := adapter.InvalidCard(a.cfg.Name, err)
			return &r
		}
		form.Set("ccnumber", v.Number)
		form.Set("ccexp", format.MMYY(v.Month, v.Year))
		if v.VerificationValue != "" {
			form.Set("cvv", v.VerificationValue)
		}
		form.Set("first_name", v.FirstName)
		form.Set("last_name", v.LastName)
	case *adapter.BankAccount:
		form.Set("payment", "check")
		form.Set("checkname", v.AccountHolder)
		form.Set("checkaba", v.RoutingNumber)
		form.Set("checkaccount", v.AccountNumber)
		if v.AccountType != "" {
			form.Set("account_type", v.AccountType)
		}
	case adapter.StoredToken:
		if storing {
			r := adapter.Unsupported(a.cfg.Name, "storing "+v.Kind())
			return &r
		}
		vault, err := vaultCodec.Decode(string(v))
		if err != nil {
			r := response.FromError(err)
			return &r
		}
		form.Set("customer_vault_id", vault.ID)
	case *adapter.WalletToken:
		if v.Source != "apple_pay" {
			r := adapter.Unsupported(a.cfg.Name, v.Source)
			return &r
		}
		form.Set("applepay_payment_data", v.Payload)
	default:
		r := adapter.Unsupported(a.cfg.Name, pm.Kind())
		return &r
	}
	return nil
}

func addCustomer(form url.Values, opts adapter.Options) {
	if opts.OrderID != "" {
		form.Set("orderid", opts.OrderID)
	}
	if opts.Description != "" {
		form.Set("orderdescription", format.Truncate(opts.Description, 255))
	}
	if opts.Email != "" {
		form.Set("email", opts.Email)
	}
	if opts.IP != "" {
		form.Set("ipaddress", opts.IP)
	}
	if addr := opts.BillingAddress; addr != nil {
		form.Set("address1", addr.Address1)
		form.Set("address2", addr.Address2)
		form.Set("city", addr.City)
		form.Set("state", addr.State)
		form.Set("zip", addr.Zip)
		form.Set("country", addr.Country)
		form.Set("phone", addr.Phone)
	}
}

// commit posts form and translates the reply. kind is recorded in the
// returned authorization so that void can re-send the payment type.
func (a *Adapter) commit(ctx context.Context, kind string, form url.Values, amount string) (response.Response, error) {
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	reply, err := a.client.Post(ctx, a.endpoint, headers, []byte(form.Encode()))
	if err != nil {
		return response.Response{}, err
	}

	values, err := url.ParseQuery(string(reply.Body))
	if err != nil || values.Get("response") == "" {
		a.logger.Warn("unparseable NMI reply", zap.Int("status", reply.StatusCode))
		return response.Failure("Invalid response received from the NMI API", response.ProcessingError,
			map[string]any{"raw_response": string(reply.Body), "status": reply.StatusCode}), nil
	}

	params := make(map[string]any, len(values))
	for k := range values {
		params[k] = values.Get(k)
	}

	f := response.Fields{
		Success: values.Get("response") == approved,
		Message: values.Get("responsetext"),
		Params:  params,
		AVSCode: values.Get("avsresponse"),
		CVVCode: values.Get("cvvresponse"),
		Test:    a.cfg.Test,
	}
	if !f.Success {
		f.ErrorCode = values.Get("response_code")
	}

	switch {
	case values.Get("customer_vault_id") != "" && kind == "store":
		if auth, err := vaultCodec.Encode(Vault{ID: values.Get("customer_vault_id")}); err == nil {
			f.Authorization = auth
		}
	case values.Get("transactionid") != "":
		auth, err := transactionCodec.Encode(Transaction{ID: values.Get("transactionid"), Type: kind, Amount: amount})
		if err != nil {
			return response.FromError(err), nil
		}
		f.Authorization = auth
	}
	return a.builder.Build(f), nil
}
