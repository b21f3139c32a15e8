package response

// CVVCode is a canonical card-verification-code outcome.
type CVVCode string

const (
	CVVMatch        CVVCode = "M"
	CVVNoMatch      CVVCode = "N"
	CVVNotProcessed CVVCode = "P"
	CVVUnsupported  CVVCode = "Unsupported"
)

var cvvMessages = map[CVVCode]string{
	CVVMatch:        "CVV matches",
	CVVNoMatch:      "CVV does not match",
	CVVNotProcessed: "CVV not processed",
	CVVUnsupported:  "CVV result not supported",
}

// CVVResult is the normalized card-verification outcome.
type CVVResult struct {
	Code    CVVCode
	Message string
}

// CodeTable translates a processor's native codes to canonical CVV codes.
type CodeTable map[string]CVVCode

// ISOCVVCodes covers processors that already report M/N/P style codes.
var ISOCVVCodes = CodeTable{
	"M": CVVMatch,
	"N": CVVNoMatch,
	"P": CVVNotProcessed,
}

// PassFailCVV is the cvc_check vocabulary of JSON gateways.
var PassFailCVV = CodeTable{
	"pass":        CVVMatch,
	"fail":        CVVNoMatch,
	"unchecked":   CVVNotProcessed,
	"unavailable": CVVNotProcessed,
}

// CVVFromCode normalizes a processor code through table. Unknown codes map to
// CVVUnsupported.
func CVVFromCode(table CodeTable, code string) *CVVResult {
	canonical, ok := table[code]
	if !ok {
		canonical = CVVUnsupported
	}
	return &CVVResult{Code: canonical, Message: cvvMessages[canonical]}
}
