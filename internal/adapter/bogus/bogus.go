// Package bogus is an in-process gateway with deterministic outcomes, used for
// integration tests and local development. Instruments whose number ends in 1
// are approved, 2 are declined and 3 fail with a transport fault; anything else
// is rejected as an invalid number.
package bogus

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/format"
	"github.com/yourorg/payment-gateway/internal/orchestrator"
	"github.com/yourorg/payment-gateway/internal/response"
	"github.com/yourorg/payment-gateway/internal/token"
	"github.com/yourorg/payment-gateway/internal/transport"
)

const (
	// Authorization is the transaction id handed out on approval.
	Authorization = "53433"

	kindAuthorize = "authorize"
	kindPurchase  = "purchase"
	kindCapture   = "capture"

	declineCode = "05"
)

// errUnreachable is what a fault-triggering instrument surfaces.
var errUnreachable = errors.New("bogus: connection refused")

// transactionToken is "<id>|<kind>|<amount>".
var transactionToken = token.MustSchema("bogus", "|",
	token.Required("id"), token.Required("kind"), token.Optional("amount"))

// Adapter implements adapter.Gateway without any network traffic.
type Adapter struct {
	name    string
	builder response.Builder
	orch    *orchestrator.Orchestrator
	logger  *zap.Logger
}

var _ adapter.Gateway = (*Adapter)(nil)

// NewAdapter creates a bogus gateway. cfg.Name defaults to "bogus".
func NewAdapter(cfg adapter.Config, classifier response.MessageClassifier, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.Name
	if name == "" {
		name = "bogus"
	}
	return &Adapter{
		name:    name,
		builder: response.NewBuilder(response.ISOResponseCodes, response.ISOCVVCodes, classifier, logger),
		orch:    orchestrator.NewOrchestrator(logger),
		logger:  logger.With(zap.String("gateway", name)),
	}
}

func (a *Adapter) Name() string { return a.name }

// outcomeDigit returns the trailing digit that drives the simulated result.
func outcomeDigit(pm adapter.PaymentMethod) (byte, bool) {
	var number string
	switch v := pm.(type) {
	case *adapter.CreditCard:
		number = v.Number
	case adapter.StoredToken:
		number = string(v)
	case *adapter.BankAccount:
		number = v.AccountNumber
	default:
		return 0, false
	}
	number = format.Digits(number)
	if number == "" {
		return '0', true
	}
	return number[len(number)-1], true
}

func (a *Adapter) charge(kind string, money adapter.Money, pm adapter.PaymentMethod) (response.Response, error) {
	if pm == nil {
		return adapter.Unsupported(a.name, "nil payment method"), nil
	}
	if card, ok := pm.(*adapter.CreditCard); ok {
		if err := card.Validate(); err != nil {
			return adapter.InvalidCard(a.name, err), nil
		}
	}
	digit, ok := outcomeDigit(pm)
	if !ok {
		return adapter.Unsupported(a.name, pm.Kind()), nil
	}
	params := map[string]any{"amount": format.Amount(money.Cents, money.Currency), "payment_method": pm.Kind()}

	switch digit {
	case '1':
		auth, err := transactionToken.Encode([]string{Authorization, kind, format.Cents(money.Cents)})
		if err != nil {
			return response.Response{}, err
		}
		return a.builder.Build(response.Fields{
			Success:       true,
			Message:       "Bogus Gateway: Forced success",
			Params:        params,
			Authorization: auth,
			AVSCode:       "Y",
			CVVCode:       "M",
			Test:          true,
		}), nil
	case '2':
		return a.builder.Build(response.Fields{
			Success:   false,
			Message:   "Bogus Gateway: Forced failure",
			Params:    params,
			ErrorCode: declineCode,
			AVSCode:   "N",
			CVVCode:   "N",
			Test:      true,
		}), nil
	case '3':
		a.logger.Debug("simulating transport fault", zap.String("kind", kind))
		return response.Response{}, &transport.Fault{Op: kind, URL: "bogus://" + a.name, Err: errUnreachable}
	default:
		return a.builder.Build(response.Fields{
			Success:   false,
			Message:   "Bogus Gateway: use a number ending in 1 for success, 2 for a decline or 3 for a transport fault",
			Params:    params,
			ErrorCode: "14",
			Test:      true,
		}), nil
	}
}

func (a *Adapter) Authorize(ctx context.Context, money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	return a.charge(kindAuthorize, money, pm)
}

func (a *Adapter) Purchase(ctx context.Context, money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	return a.charge(kindPurchase, money, pm)
}

// followUp runs an operation against a previously issued authorization.
func (a *Adapter) followUp(kind string, money adapter.Money, authorization string, allowed ...string) (response.Response, error) {
	parts, err := transactionToken.Decode(authorization)
	if err != nil {
		return response.Response{}, err
	}
	id, original := parts[0], parts[1]
	params := map[string]any{"authorization": id, "original": original}

	for _, k := range allowed {
		if k != original {
			continue
		}
		amount := parts[2]
		if money.Cents > 0 {
			amount = format.Cents(money.Cents)
		}
		auth, err := transactionToken.Encode([]string{id, kind, amount})
		if err != nil {
			return response.Response{}, err
		}
		return a.builder.Build(response.Fields{
			Success:       true,
			Message:       "Bogus Gateway: Forced success",
			Params:        params,
			Authorization: auth,
			Test:          true,
		}), nil
	}
	return a.builder.Build(response.Fields{
		Success:   false,
		Message:   "Bogus Gateway: cannot " + kind + " a " + original + " transaction",
		Params:    params,
		ErrorCode: "12",
		Test:      true,
	}), nil
}

func (a *Adapter) Capture(ctx context.Context, money adapter.Money, authorization string, opts adapter.Options) (response.Response, error) {
	return a.followUp(kindCapture, money, authorization, kindAuthorize)
}

func (a *Adapter) Refund(ctx context.Context, money adapter.Money, authorization string, opts adapter.Options) (response.Response, error) {
	return a.followUp("refund", money, authorization, kindPurchase, kindCapture)
}

func (a *Adapter) Void(ctx context.Context, authorization string, opts adapter.Options) (response.Response, error) {
	return a.followUp("void", adapter.Money{}, authorization, kindAuthorize, kindPurchase, kindCapture)
}

// Store returns the card's last digits as the vault reference, so the stored
// token keeps the card's simulated outcome.
func (a *Adapter) Store(ctx context.Context, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	if pm == nil {
		return adapter.Unsupported(a.name, "nil payment method"), nil
	}
	card, ok := pm.(*adapter.CreditCard)
	if !ok {
		return adapter.Unsupported(a.name, "storing "+pm.Kind()), nil
	}
	res, err := a.charge("store", adapter.Money{}, card)
	if err != nil || !res.Success {
		return res, err
	}
	res.Authorization = "vault_" + card.LastDigits()
	return res, nil
}

// Verify authorizes a minimal amount and voids it, reporting the authorization.
func (a *Adapter) Verify(ctx context.Context, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	money := adapter.Money{Cents: 100, Currency: "USD"}
	return a.orch.Run(ctx, orchestrator.UseFirstResponse,
		orchestrator.Process("authorize", func(ctx context.Context, _ orchestrator.Results) (response.Response, error) {
			return a.Authorize(ctx, money, pm, opts)
		}),
		orchestrator.Ignore("void", func(ctx context.Context, prior orchestrator.Results) (response.Response, error) {
			return a.Void(ctx, prior.Authorization(), opts)
		}),
	), nil
}
