package response

import (
	"errors"

	"go.uber.org/zap"
)

// MessageClassifier guesses a canonical error from free text. Implementations
// are heuristics; a false second return means no rule matched.
type MessageClassifier interface {
	Classify(message string) (StandardError, bool)
}

// Fields is everything an adapter extracted from a processor reply.
type Fields struct {
	Success       bool
	Message       string
	Params        map[string]any
	Authorization string

	// AVSCode is a single canonical-alphabet code. When empty, AVSStreet and
	// AVSPostal are used if either is set.
	AVSCode   string
	AVSStreet string
	AVSPostal string
	// AVSMatches translates AVSStreet/AVSPostal; defaults to PassFail.
	AVSMatches MatchTable

	CVVCode string

	// ErrorCode is the processor's own decline or error code.
	ErrorCode string

	Test        bool
	FraudReview bool
}

// Builder turns Fields into a Response using a fixed set of tables.
type Builder struct {
	Errors     StandardErrorTable
	CVV        CodeTable
	Classifier MessageClassifier
	Logger     *zap.Logger
}

// NewBuilder returns a builder for a processor vocabulary. The CVV table
// defaults to ISOCVVCodes.
func NewBuilder(errs StandardErrorTable, cvv CodeTable, classifier MessageClassifier, logger *zap.Logger) Builder {
	if cvv == nil {
		cvv = ISOCVVCodes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Builder{Errors: errs, CVV: cvv, Classifier: classifier, Logger: logger}
}

// Build produces the canonical response. Missing optional signals stay unset.
func (b Builder) Build(f Fields) Response {
	params := f.Params
	if params == nil {
		params = make(map[string]any)
	}

	r := Response{
		Success:       f.Success,
		Message:       f.Message,
		Params:        params,
		Authorization: f.Authorization,
		Test:          f.Test,
		FraudReview:   f.FraudReview,
	}

	switch {
	case f.AVSCode != "":
		r.AVSResult = AVSFromCode(f.AVSCode)
	case f.AVSStreet != "" || f.AVSPostal != "":
		matches := f.AVSMatches
		if matches == nil {
			matches = PassFail
		}
		r.AVSResult = AVSFromMatches(matches.Lookup(f.AVSStreet), matches.Lookup(f.AVSPostal))
	}

	if f.CVVCode != "" {
		table := b.CVV
		if table == nil {
			table = ISOCVVCodes
		}
		r.CVVResult = CVVFromCode(table, f.CVVCode)
	}

	if !f.Success {
		r.ErrorCode = b.standardError(f)
	}
	return r
}

func (b Builder) standardError(f Fields) StandardError {
	if f.ErrorCode != "" {
		se, err := b.Errors.Resolve(f.ErrorCode)
		if err == nil {
			return se
		}
		if b.Logger != nil && errors.Is(err, ErrUnmappedSignal) {
			b.Logger.Debug("unmapped processor error code",
				zap.String("table", b.Errors.Name),
				zap.String("code", f.ErrorCode))
		}
	}
	if b.Classifier != nil && f.Message != "" {
		if se, ok := b.Classifier.Classify(f.Message); ok {
			return se
		}
	}
	return ProcessingError
}
