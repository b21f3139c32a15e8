package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/monitor"
	"github.com/yourorg/payment-gateway/internal/processor"
	"github.com/yourorg/payment-gateway/internal/response"
)

type gatewayRequest struct {
	RequestID     string             `json:"request_id"`
	Amount        int64              `json:"amount"`
	Currency      string             `json:"currency"`
	Authorization string             `json:"authorization"`
	PaymentMethod *paymentMethodBody `json:"payment_method"`
	Options       optionsBody        `json:"options"`
}

type paymentMethodBody struct {
	Type string `json:"type"`

	Number            string `json:"number"`
	Month             int    `json:"month"`
	Year              int    `json:"year"`
	VerificationValue string `json:"verification_value"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`

	Value string `json:"value"`

	RoutingNumber string `json:"routing_number"`
	AccountNumber string `json:"account_number"`
	AccountType   string `json:"account_type"`
	AccountHolder string `json:"account_holder"`

	Source     string `json:"source"`
	Payload    string `json:"payload"`
	Descriptor string `json:"descriptor"`
}

type addressBody struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

type optionsBody struct {
	OrderID        string            `json:"order_id"`
	Description    string            `json:"description"`
	Email          string            `json:"email"`
	IP             string            `json:"ip"`
	CustomerID     string            `json:"customer_id"`
	BillingAddress *addressBody      `json:"billing_address"`
	Metadata       map[string]string `json:"metadata"`
}

type avsBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type cvvBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type responseBody struct {
	RequestID     string         `json:"request_id"`
	Gateway       string         `json:"gateway"`
	Operation     string         `json:"operation"`
	Success       bool           `json:"success"`
	Message       string         `json:"message"`
	Authorization string         `json:"authorization,omitempty"`
	ErrorCode     string         `json:"error_code,omitempty"`
	AVSResult     *avsBody       `json:"avs_result,omitempty"`
	CVVResult     *cvvBody       `json:"cvv_result,omitempty"`
	Test          bool           `json:"test"`
	FraudReview   bool           `json:"fraud_review"`
	Params        map[string]any `json:"params,omitempty"`
}

func (p *paymentMethodBody) toPaymentMethod() (adapter.PaymentMethod, error) {
	switch p.Type {
	case "card":
		return &adapter.CreditCard{
			Number:            p.Number,
			Month:             p.Month,
			Year:              p.Year,
			VerificationValue: p.VerificationValue,
			FirstName:         p.FirstName,
			LastName:          p.LastName,
		}, nil
	case "stored_token":
		return adapter.StoredToken(p.Value), nil
	case "bank_account":
		return &adapter.BankAccount{
			RoutingNumber: p.RoutingNumber,
			AccountNumber: p.AccountNumber,
			AccountType:   p.AccountType,
			AccountHolder: p.AccountHolder,
		}, nil
	case "wallet":
		return &adapter.WalletToken{Source: p.Source, Payload: p.Payload, Descriptor: p.Descriptor}, nil
	default:
		return nil, fmt.Errorf("unknown payment method type %q", p.Type)
	}
}

func (o optionsBody) toOptions() adapter.Options {
	opts := adapter.Options{
		OrderID:     o.OrderID,
		Description: o.Description,
		Email:       o.Email,
		IP:          o.IP,
		CustomerID:  o.CustomerID,
		Metadata:    o.Metadata,
	}
	if a := o.BillingAddress; a != nil {
		opts.BillingAddress = &adapter.Address{
			Name:     a.Name,
			Address1: a.Address1,
			Address2: a.Address2,
			City:     a.City,
			State:    a.State,
			Zip:      a.Zip,
			Country:  a.Country,
			Phone:    a.Phone,
		}
	}
	return opts
}

func newResponseBody(requestID, gateway string, op adapter.Operation, res response.Response) responseBody {
	body := responseBody{
		RequestID:     requestID,
		Gateway:       gateway,
		Operation:     string(op),
		Success:       res.Success,
		Message:       res.Message,
		Authorization: res.Authorization,
		ErrorCode:     string(res.ErrorCode),
		Test:          res.Test,
		FraudReview:   res.FraudReview,
		Params:        res.Params,
	}
	if res.AVSResult != nil {
		body.AVSResult = &avsBody{Code: string(res.AVSResult.Code), Message: res.AVSResult.Message}
	}
	if res.CVVResult != nil {
		body.CVVResult = &cvvBody{Code: string(res.CVVResult.Code), Message: res.CVVResult.Message}
	}
	return body
}

func knownOperation(op adapter.Operation) bool {
	for _, known := range adapter.Operations {
		if op == known {
			return true
		}
	}
	return false
}

func (s *server) listGatewaysHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"gateways": s.proc.Gateways()})
}

// operationHandler validates the body against the operation's contract and
// runs it. Processor declines are reported with 200 and success=false.
func (s *server) operationHandler(c *gin.Context) {
	gateway := c.Param("gateway")
	op := adapter.Operation(c.Param("operation"))

	if _, ok := s.proc.Gateway(gateway); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Unknown gateway %q", gateway)})
		return
	}
	if !knownOperation(op) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Unknown operation %q", op)})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	valid, violations, err := s.contract.Validate(op, body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": monitor.FormatErrors(violations)})
		return
	}

	var req gatewayRequest
	if err := binding.JSON.BindBody(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	procReq := processor.Request{
		RequestID:     req.RequestID,
		Money:         adapter.Money{Cents: req.Amount, Currency: strings.ToUpper(req.Currency)},
		Authorization: req.Authorization,
		Options:       req.Options.toOptions(),
	}
	if procReq.RequestID == "" {
		procReq.RequestID = uuid.NewString()
	}
	if procReq.Money.Currency == "" {
		procReq.Money.Currency = "USD"
	}
	if req.PaymentMethod != nil {
		pm, err := req.PaymentMethod.toPaymentMethod()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed: " + err.Error()})
			return
		}
		procReq.PaymentMethod = pm
	}

	res := s.proc.Execute(c.Request.Context(), gateway, op, procReq)
	s.logger.Debug("operation result",
		zap.String("request_id", procReq.RequestID),
		zap.Bool("success", res.Success),
		zap.String("error_code", string(res.ErrorCode)))
	c.JSON(http.StatusOK, newResponseBody(procReq.RequestID, gateway, op, res))
}

func (s *server) reportHandler(c *gin.Context) {
	report, err := s.reporter.GenerateRetrospective(s.journal.Entries())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error generating report: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
