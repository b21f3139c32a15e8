package response

// AVSCode is a canonical address-verification code.
type AVSCode string

// AVSUnsupported marks a processor signal that has no canonical equivalent.
const AVSUnsupported AVSCode = "Unsupported"

// Match is a per-component verification outcome reported by processors that
// split street and postal checks.
type Match int

const (
	MatchUnknown Match = iota
	MatchYes
	MatchNo
)

type avsEntry struct {
	message string
	street  Match
	postal  Match
}

var avsCodes = map[AVSCode]avsEntry{
	"A": {"Street address matches, but postal code does not match.", MatchYes, MatchNo},
	"B": {"Street address matches, but postal code not verified.", MatchYes, MatchUnknown},
	"C": {"Street address and postal code do not match.", MatchNo, MatchNo},
	"D": {"Street address and postal code match.", MatchYes, MatchYes},
	"E": {"AVS data is invalid or AVS is not allowed for this card type.", MatchUnknown, MatchUnknown},
	"F": {"Card member's name does not match, but billing postal code matches.", MatchUnknown, MatchYes},
	"G": {"Non-U.S. issuing bank does not support AVS.", MatchUnknown, MatchUnknown},
	"I": {"Address not verified.", MatchUnknown, MatchUnknown},
	"K": {"Card member's name matches but billing address and billing postal code do not match.", MatchNo, MatchNo},
	"L": {"Card member's name and billing postal code match, but billing address does not match.", MatchNo, MatchYes},
	"M": {"Street address and postal code match.", MatchYes, MatchYes},
	"N": {"Street address and postal code do not match.", MatchNo, MatchNo},
	"O": {"Card member's name and billing address match, but billing postal code does not match.", MatchYes, MatchNo},
	"P": {"Postal code matches, but street address not verified.", MatchUnknown, MatchYes},
	"R": {"System unavailable.", MatchUnknown, MatchUnknown},
	"S": {"U.S.-issuing bank does not support AVS.", MatchUnknown, MatchUnknown},
	"T": {"Card member's name does not match, but street address matches.", MatchYes, MatchUnknown},
	"U": {"Address information unavailable.", MatchUnknown, MatchUnknown},
	"V": {"Card member's name, billing address, and billing postal code match.", MatchYes, MatchYes},
	"W": {"Street address does not match, but 9-digit postal code matches.", MatchNo, MatchYes},
	"X": {"Street address and 9-digit postal code match.", MatchYes, MatchYes},
	"Y": {"Street address and 5-digit postal code match.", MatchYes, MatchYes},
	"Z": {"Street address does not match, but 5-digit postal code matches.", MatchNo, MatchYes},
}

// AVSResult is the normalized address-verification outcome.
type AVSResult struct {
	Code        AVSCode
	Message     string
	StreetMatch Match
	PostalMatch Match
}

// AVSFromCode normalizes a single processor code that already uses the
// canonical alphabet. Unknown codes map to AVSUnsupported.
func AVSFromCode(code string) *AVSResult {
	entry, ok := avsCodes[AVSCode(code)]
	if !ok {
		return &AVSResult{Code: AVSUnsupported, Message: "Unsupported address verification code: " + code}
	}
	return &AVSResult{
		Code:        AVSCode(code),
		Message:     entry.message,
		StreetMatch: entry.street,
		PostalMatch: entry.postal,
	}
}

// AVSFromMatches derives a canonical code from separate street and postal outcomes.
func AVSFromMatches(street, postal Match) *AVSResult {
	var code AVSCode
	switch {
	case street == MatchYes && postal == MatchYes:
		code = "Y"
	case street == MatchYes && postal == MatchNo:
		code = "A"
	case street == MatchNo && postal == MatchYes:
		code = "Z"
	case street == MatchYes:
		code = "B"
	case postal == MatchYes:
		code = "P"
	case street == MatchNo || postal == MatchNo:
		code = "N"
	default:
		code = "U"
	}
	res := AVSFromCode(string(code))
	res.StreetMatch = street
	res.PostalMatch = postal
	return res
}

// MatchTable translates a processor's per-component check vocabulary.
type MatchTable map[string]Match

// PassFail is the check vocabulary used by most JSON gateways.
var PassFail = MatchTable{
	"pass":        MatchYes,
	"fail":        MatchNo,
	"unavailable": MatchUnknown,
	"unchecked":   MatchUnknown,
}

// Lookup returns the match for a processor value; unknown values are MatchUnknown.
func (t MatchTable) Lookup(value string) Match {
	return t[value]
}
