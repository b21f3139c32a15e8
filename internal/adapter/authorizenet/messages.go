package authorizenet

import "encoding/xml"

const apiNamespace = "AnetApi/xml/v1/schema/AnetApiSchema.xsd"

type merchantAuthentication struct {
	Name           string `xml:"name"`
	TransactionKey string `xml:"transactionKey"`
}

type creditCard struct {
	CardNumber     string `xml:"cardNumber"`
	ExpirationDate string `xml:"expirationDate"`
	CardCode       string `xml:"cardCode,omitempty"`
}

type bankAccount struct {
	AccountType   string `xml:"accountType,omitempty"`
	RoutingNumber string `xml:"routingNumber"`
	AccountNumber string `xml:"accountNumber"`
	NameOnAccount string `xml:"nameOnAccount"`
}

type opaqueData struct {
	DataDescriptor string `xml:"dataDescriptor"`
	DataValue      string `xml:"dataValue"`
}

type payment struct {
	CreditCard  *creditCard  `xml:"creditCard,omitempty"`
	BankAccount *bankAccount `xml:"bankAccount,omitempty"`
	OpaqueData  *opaqueData  `xml:"opaqueData,omitempty"`
}

type order struct {
	InvoiceNumber string `xml:"invoiceNumber,omitempty"`
	Description   string `xml:"description,omitempty"`
}

type customer struct {
	ID    string `xml:"id,omitempty"`
	Email string `xml:"email,omitempty"`
}

type billTo struct {
	FirstName   string `xml:"firstName,omitempty"`
	LastName    string `xml:"lastName,omitempty"`
	Address     string `xml:"address,omitempty"`
	City        string `xml:"city,omitempty"`
	State       string `xml:"state,omitempty"`
	Zip         string `xml:"zip,omitempty"`
	Country     string `xml:"country,omitempty"`
	PhoneNumber string `xml:"phoneNumber,omitempty"`
}

// transactionRequest element order follows the XSD sequence.
type transactionRequest struct {
	TransactionType string    `xml:"transactionType"`
	Amount          string    `xml:"amount,omitempty"`
	CurrencyCode    string    `xml:"currencyCode,omitempty"`
	Payment         *payment  `xml:"payment,omitempty"`
	RefTransID      string    `xml:"refTransId,omitempty"`
	Order           *order    `xml:"order,omitempty"`
	Customer        *customer `xml:"customer,omitempty"`
	BillTo          *billTo   `xml:"billTo,omitempty"`
	CustomerIP      string    `xml:"customerIP,omitempty"`
}

type createTransactionRequest struct {
	XMLName                xml.Name               `xml:"createTransactionRequest"`
	Xmlns                  string                 `xml:"xmlns,attr"`
	MerchantAuthentication merchantAuthentication `xml:"merchantAuthentication"`
	RefID                  string                 `xml:"refId,omitempty"`
	TransactionRequest     transactionRequest     `xml:"transactionRequest"`
}

type resultMessage struct {
	Code string `xml:"code"`
	Text string `xml:"text"`
}

type transactionMessage struct {
	Code        string `xml:"code"`
	Description string `xml:"description"`
}

type transactionError struct {
	ErrorCode string `xml:"errorCode"`
	ErrorText string `xml:"errorText"`
}

type transactionResponse struct {
	ResponseCode  string               `xml:"responseCode"`
	AuthCode      string               `xml:"authCode"`
	AVSResultCode string               `xml:"avsResultCode"`
	CVVResultCode string               `xml:"cvvResultCode"`
	TransID       string               `xml:"transId"`
	AccountNumber string               `xml:"accountNumber"`
	AccountType   string               `xml:"accountType"`
	TestRequest   string               `xml:"testRequest"`
	Messages      []transactionMessage `xml:"messages>message"`
	Errors        []transactionError   `xml:"errors>error"`
}

// createTransactionResponse also decodes ErrorResponse documents, which share
// the messages block.
type createTransactionResponse struct {
	RefID       string               `xml:"refId"`
	ResultCode  string               `xml:"messages>resultCode"`
	Messages    []resultMessage      `xml:"messages>message"`
	Transaction *transactionResponse `xml:"transactionResponse"`
}
