package response

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAVSFromCode(t *testing.T) {
	r := AVSFromCode("Y")
	assert.Equal(t, AVSCode("Y"), r.Code)
	assert.Equal(t, MatchYes, r.StreetMatch)
	assert.Equal(t, MatchYes, r.PostalMatch)
	assert.NotEmpty(t, r.Message)

	r = AVSFromCode("A")
	assert.Equal(t, MatchYes, r.StreetMatch)
	assert.Equal(t, MatchNo, r.PostalMatch)

	unknown := AVSFromCode("9")
	assert.Equal(t, AVSUnsupported, unknown.Code)
	assert.Equal(t, MatchUnknown, unknown.StreetMatch)
}

func TestAVSFromMatches(t *testing.T) {
	cases := []struct {
		street, postal Match
		want           AVSCode
	}{
		{MatchYes, MatchYes, "Y"},
		{MatchYes, MatchNo, "A"},
		{MatchNo, MatchYes, "Z"},
		{MatchYes, MatchUnknown, "B"},
		{MatchUnknown, MatchYes, "P"},
		{MatchNo, MatchNo, "N"},
		{MatchNo, MatchUnknown, "N"},
		{MatchUnknown, MatchUnknown, "U"},
	}
	for _, c := range cases {
		r := AVSFromMatches(c.street, c.postal)
		assert.Equal(t, c.want, r.Code)
		assert.Equal(t, c.street, r.StreetMatch)
		assert.Equal(t, c.postal, r.PostalMatch)
	}
	assert.Equal(t, MatchUnknown, PassFail.Lookup("something-new"))
}

func TestCVVFromCode(t *testing.T) {
	assert.Equal(t, CVVMatch, CVVFromCode(ISOCVVCodes, "M").Code)
	assert.Equal(t, CVVNoMatch, CVVFromCode(PassFailCVV, "fail").Code)
	assert.Equal(t, CVVNotProcessed, CVVFromCode(PassFailCVV, "unavailable").Code)

	r := CVVFromCode(ISOCVVCodes, "Q")
	assert.Equal(t, CVVUnsupported, r.Code)
	assert.NotEmpty(t, r.Message)
}

func TestStandardErrorTables_Total(t *testing.T) {
	canonical := make(map[StandardError]bool, len(StandardErrors))
	for _, se := range StandardErrors {
		canonical[se] = true
	}

	for _, table := range []StandardErrorTable{ISOResponseCodes, DeclineCodes, NMIResponseCodes, AuthorizeNetReasonCodes} {
		require.NotEmpty(t, table.Name)
		for code, se := range table.Entries {
			assert.True(t, canonical[se], "%s[%s] maps to non-canonical %q", table.Name, code, se)
		}

		se, err := table.Resolve("definitely-not-a-code")
		assert.Equal(t, ProcessingError, se)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnmappedSignal))

		var unmapped *UnmappedSignalError
		require.ErrorAs(t, err, &unmapped)
		assert.Equal(t, table.Name, unmapped.Table)
		assert.Equal(t, "definitely-not-a-code", unmapped.Code)
	}
}

func TestStandardErrorTables_KnownCodes(t *testing.T) {
	assert.Equal(t, CardDeclined, ISOResponseCodes.Classify("05"))
	assert.Equal(t, InsufficientFunds, ISOResponseCodes.Classify("51"))
	assert.Equal(t, IncorrectCVC, ISOResponseCodes.Classify("N7"))
	assert.Equal(t, ExpiredCard, DeclineCodes.Classify("expired_card"))
	assert.Equal(t, InvalidAuthorization, DeclineCodes.Classify("resource_missing"))
	assert.Equal(t, DuplicateTransaction, NMIResponseCodes.Classify("430"))
	assert.Equal(t, ExpiredCard, AuthorizeNetReasonCodes.Classify("8"))
}
