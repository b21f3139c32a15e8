package adapter

import (
	"errors"
	"strings"
)

// PaymentMethod is a closed set of instrument variants. Adapters type-switch on
// the concrete type to choose their field-building path.
type PaymentMethod interface {
	paymentMethod()
	// Kind names the variant, e.g. "credit_card".
	Kind() string
}

// CreditCard is a raw card.
type CreditCard struct {
	Number            string
	Month             int
	Year              int // four digits
	VerificationValue string
	FirstName         string
	LastName          string
}

// StoredToken references an instrument previously saved with Store. The value
// is the Authorization returned by that Store call.
type StoredToken string

// BankAccount is a checking or savings account for ACH-style debits.
type BankAccount struct {
	RoutingNumber string
	AccountNumber string
	AccountType   string // "checking" or "savings"
	AccountHolder string
}

// WalletToken is a network or wallet payment token (Apple Pay, Google Pay).
type WalletToken struct {
	Source     string // "apple_pay", "google_pay"
	Payload    string // Opaque encrypted payload from the wallet
	Descriptor string // Processor-specific payload descriptor, if any
}

func (*CreditCard) paymentMethod() {}
func (StoredToken) paymentMethod() {}
func (*BankAccount) paymentMethod() {}
func (*WalletToken) paymentMethod() {}

func (*CreditCard) Kind() string { return "credit_card" }
func (StoredToken) Kind() string { return "stored_token" }
func (*BankAccount) Kind() string { return "bank_account" }
func (*WalletToken) Kind() string { return "wallet_token" }

// Name is the cardholder's full name.
func (c *CreditCard) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// LastDigits returns the last four digits of the card number.
func (c *CreditCard) LastDigits() string {
	if len(c.Number) <= 4 {
		return c.Number
	}
	return c.Number[len(c.Number)-4:]
}

var (
	ErrInvalidNumber = errors.New("card number must be 12 to 19 digits")
	ErrInvalidExpiry = errors.New("card expiry needs a month of 1..12 and a four-digit year")
)

// Validate checks the fields every processor requires.
func (c *CreditCard) Validate() error {
	if len(c.Number) < 12 || len(c.Number) > 19 {
		return ErrInvalidNumber
	}
	for _, r := range c.Number {
		if r < '0' || r > '9' {
			return ErrInvalidNumber
		}
	}
	if c.Month < 1 || c.Month > 12 || c.Year < 1000 || c.Year > 9999 {
		return ErrInvalidExpiry
	}
	return nil
}
