package response

import (
	"errors"
	"fmt"
)

// StandardError is a canonical, cross-processor decline or error reason.
type StandardError string

const (
	IncorrectNumber      StandardError = "incorrect_number"
	InvalidNumber        StandardError = "invalid_number"
	InvalidExpiryDate    StandardError = "invalid_expiry_date"
	InvalidCVC           StandardError = "invalid_cvc"
	ExpiredCard          StandardError = "expired_card"
	IncorrectCVC         StandardError = "incorrect_cvc"
	IncorrectZip         StandardError = "incorrect_zip"
	IncorrectAddress     StandardError = "incorrect_address"
	IncorrectPIN         StandardError = "incorrect_pin"
	CardDeclined         StandardError = "card_declined"
	ProcessingError      StandardError = "processing_error"
	CallIssuer           StandardError = "call_issuer"
	PickupCard           StandardError = "pickup_card"
	ConfigError          StandardError = "config_error"
	TestModeLiveCard     StandardError = "test_mode_live_card"
	UnsupportedFeature   StandardError = "unsupported_feature"
	InvalidAmount        StandardError = "invalid_amount"
	InsufficientFunds    StandardError = "insufficient_funds"
	DuplicateTransaction StandardError = "duplicate_transaction"
	InvalidAuthorization StandardError = "invalid_authorization"
)

// StandardErrors lists every canonical value.
var StandardErrors = []StandardError{
	IncorrectNumber, InvalidNumber, InvalidExpiryDate, InvalidCVC, ExpiredCard,
	IncorrectCVC, IncorrectZip, IncorrectAddress, IncorrectPIN, CardDeclined,
	ProcessingError, CallIssuer, PickupCard, ConfigError, TestModeLiveCard,
	UnsupportedFeature, InvalidAmount, InsufficientFunds, DuplicateTransaction,
	InvalidAuthorization,
}

// ErrUnmappedSignal is matched by every UnmappedSignalError.
var ErrUnmappedSignal = errors.New("unmapped processor signal")

// UnmappedSignalError records a processor code missing from a table. It never
// reaches callers; the table resolves it to ProcessingError.
type UnmappedSignalError struct {
	Table string
	Code  string
}

func (e *UnmappedSignalError) Error() string {
	return fmt.Sprintf("response: %s has no entry for code %q", e.Table, e.Code)
}

func (e *UnmappedSignalError) Unwrap() error { return ErrUnmappedSignal }

// StandardErrorTable maps one processor vocabulary onto the canonical set.
type StandardErrorTable struct {
	Name    string
	Entries map[string]StandardError
}

// Resolve looks code up. Unknown codes resolve to ProcessingError together
// with an *UnmappedSignalError describing the gap.
func (t StandardErrorTable) Resolve(code string) (StandardError, error) {
	if se, ok := t.Entries[code]; ok {
		return se, nil
	}
	return ProcessingError, &UnmappedSignalError{Table: t.Name, Code: code}
}

// Classify is the total form of Resolve.
func (t StandardErrorTable) Classify(code string) StandardError {
	se, _ := t.Resolve(code)
	return se
}

// ISOResponseCodes is the ISO 8583 field 39 vocabulary shared by most acquirers.
var ISOResponseCodes = StandardErrorTable{
	Name: "iso8583",
	Entries: map[string]StandardError{
		"01": CallIssuer,
		"02": CallIssuer,
		"03": ConfigError,
		"04": PickupCard,
		"05": CardDeclined,
		"07": PickupCard,
		"12": ProcessingError,
		"13": InvalidAmount,
		"14": InvalidNumber,
		"15": InvalidNumber,
		"19": ProcessingError,
		"33": ExpiredCard,
		"41": PickupCard,
		"43": PickupCard,
		"51": InsufficientFunds,
		"54": ExpiredCard,
		"55": IncorrectPIN,
		"57": CardDeclined,
		"58": ConfigError,
		"61": CardDeclined,
		"62": CardDeclined,
		"65": CardDeclined,
		"75": IncorrectPIN,
		"82": IncorrectCVC,
		"91": ProcessingError,
		"94": DuplicateTransaction,
		"96": ProcessingError,
		"N7": IncorrectCVC,
	},
}

// DeclineCodes is the textual slug vocabulary used by JSON gateways.
var DeclineCodes = StandardErrorTable{
	Name: "decline_codes",
	Entries: map[string]StandardError{
		"incorrect_number":        IncorrectNumber,
		"invalid_number":          InvalidNumber,
		"invalid_expiry_month":    InvalidExpiryDate,
		"invalid_expiry_year":     InvalidExpiryDate,
		"invalid_cvc":             InvalidCVC,
		"expired_card":            ExpiredCard,
		"incorrect_cvc":           IncorrectCVC,
		"incorrect_zip":           IncorrectZip,
		"incorrect_address":       IncorrectAddress,
		"incorrect_pin":           IncorrectPIN,
		"card_declined":           CardDeclined,
		"generic_decline":         CardDeclined,
		"do_not_honor":            CardDeclined,
		"processing_error":        ProcessingError,
		"call_issuer":             CallIssuer,
		"pickup_card":             PickupCard,
		"lost_card":               PickupCard,
		"stolen_card":             PickupCard,
		"test_mode_live_card":     TestModeLiveCard,
		"livemode_mismatch":       ConfigError,
		"insufficient_funds":      InsufficientFunds,
		"duplicate_transaction":   DuplicateTransaction,
		"amount_too_small":        InvalidAmount,
		"amount_too_large":        InvalidAmount,
		"invalid_amount":          InvalidAmount,
		"card_not_supported":      UnsupportedFeature,
		"currency_not_supported":  UnsupportedFeature,
		"charge_already_captured": ProcessingError,
		"charge_already_refunded": ProcessingError,
		"api_key_expired":         ConfigError,
		"authentication_required": CardDeclined,
		"resource_missing":        InvalidAuthorization,
	},
}

// NMIResponseCodes covers the three-digit response_code of NMI-style gateways.
var NMIResponseCodes = StandardErrorTable{
	Name: "nmi",
	Entries: map[string]StandardError{
		"200": CardDeclined,
		"201": CardDeclined,
		"202": InsufficientFunds,
		"203": InvalidAmount,
		"204": UnsupportedFeature,
		"220": IncorrectNumber,
		"221": InvalidNumber,
		"222": InvalidNumber,
		"223": ExpiredCard,
		"224": InvalidExpiryDate,
		"225": IncorrectCVC,
		"240": CallIssuer,
		"250": PickupCard,
		"251": PickupCard,
		"252": PickupCard,
		"253": PickupCard,
		"260": CardDeclined,
		"261": CardDeclined,
		"262": CardDeclined,
		"263": CardDeclined,
		"264": CardDeclined,
		"300": ProcessingError,
		"400": ProcessingError,
		"410": ConfigError,
		"411": ConfigError,
		"420": ProcessingError,
		"421": ProcessingError,
		"430": DuplicateTransaction,
		"440": ProcessingError,
		"441": ProcessingError,
		"460": ProcessingError,
		"461": UnsupportedFeature,
	},
}

// AuthorizeNetReasonCodes covers Authorize.Net response reason and error codes.
var AuthorizeNetReasonCodes = StandardErrorTable{
	Name: "authorizenet",
	Entries: map[string]StandardError{
		"2":      CardDeclined,
		"3":      CardDeclined,
		"4":      PickupCard,
		"5":      InvalidAmount,
		"6":      IncorrectNumber,
		"7":      InvalidExpiryDate,
		"8":      ExpiredCard,
		"11":     DuplicateTransaction,
		"13":     ConfigError,
		"17":     UnsupportedFeature,
		"19":     ProcessingError,
		"27":     IncorrectAddress,
		"28":     UnsupportedFeature,
		"33":     ProcessingError,
		"37":     IncorrectNumber,
		"44":     IncorrectCVC,
		"45":     IncorrectAddress,
		"54":     ProcessingError,
		"65":     IncorrectCVC,
		"78":     InvalidCVC,
		"127":    IncorrectAddress,
		"E00007": ConfigError,
		"E00027": ProcessingError,
	},
}
