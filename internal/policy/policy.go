// Package policy holds the rule-driven heuristic used when a processor reports
// a decline only as free text. Rules are govaluate expressions over the
// lowercased message; the first matching rule (by priority) names the
// canonical error. Matches are best-effort and never stricter than the text.
package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/response"
)

// DeclineRule maps messages satisfying Expression to Error.
type DeclineRule struct {
	ID         string
	Expression string
	Priority   int // Lower runs first; ties keep declaration order
	Error      response.StandardError
}

type compiledRule struct {
	DeclineRule
	expr *govaluate.EvaluableExpression
}

// DeclineClassifier evaluates compiled rules. It is immutable after
// construction and safe for concurrent use.
type DeclineClassifier struct {
	rules  []compiledRule
	logger *zap.Logger
}

var _ response.MessageClassifier = (*DeclineClassifier)(nil)

// NewDeclineClassifier compiles rules, failing on the first invalid one.
func NewDeclineClassifier(rules []DeclineRule, logger *zap.Logger) (*DeclineClassifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if strings.TrimSpace(r.Expression) == "" {
			return nil, fmt.Errorf("policy rule ID '%s' has an empty expression", r.ID)
		}
		if r.Error == "" {
			return nil, fmt.Errorf("policy rule ID '%s' has no standard error", r.ID)
		}
		expr, err := govaluate.NewEvaluableExpression(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule ID '%s': %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{DeclineRule: r, expr: expr})
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority < compiled[j].Priority
	})
	return &DeclineClassifier{rules: compiled, logger: logger}, nil
}

// Evaluate runs the rules against message and reports evaluation errors.
func (c *DeclineClassifier) Evaluate(message string) (response.StandardError, bool, error) {
	params := map[string]interface{}{
		"message": strings.ToLower(strings.TrimSpace(message)),
	}
	for _, r := range c.rules {
		out, err := r.expr.Evaluate(params)
		if err != nil {
			return "", false, fmt.Errorf("failed to evaluate rule ID '%s': %w", r.ID, err)
		}
		matched, ok := out.(bool)
		if !ok {
			return "", false, fmt.Errorf("rule ID '%s' did not evaluate to a boolean", r.ID)
		}
		if matched {
			return r.Error, true, nil
		}
	}
	return "", false, nil
}

// Classify implements response.MessageClassifier. Evaluation errors are
// logged and treated as no match.
func (c *DeclineClassifier) Classify(message string) (response.StandardError, bool) {
	se, ok, err := c.Evaluate(message)
	if err != nil {
		c.logger.Warn("decline rule evaluation failed", zap.Error(err))
		return "", false
	}
	return se, ok
}

// DefaultRules is the built-in vocabulary for free-text declines.
func DefaultRules() []DeclineRule {
	return []DeclineRule{
		{ID: "duplicate", Expression: "message =~ 'duplicate'", Priority: 1, Error: response.DuplicateTransaction},
		{ID: "insufficient_funds", Expression: "message =~ 'insufficient|nsf|not sufficient funds'", Priority: 2, Error: response.InsufficientFunds},
		{ID: "invalid_expiry", Expression: "message =~ '(invalid|bad) (expiration|expiry|exp)|expiration date is invalid'", Priority: 3, Error: response.InvalidExpiryDate},
		{ID: "expired_card", Expression: "message =~ 'expired'", Priority: 4, Error: response.ExpiredCard},
		{ID: "cvc", Expression: "message =~ 'cvv|cvc|security code|card code'", Priority: 5, Error: response.IncorrectCVC},
		{ID: "zip", Expression: "message =~ 'zip|postal'", Priority: 6, Error: response.IncorrectZip},
		{ID: "address", Expression: "message =~ 'address|avs'", Priority: 7, Error: response.IncorrectAddress},
		{ID: "pickup", Expression: "message =~ 'pick ?up|lost card|stolen'", Priority: 8, Error: response.PickupCard},
		{ID: "call_issuer", Expression: "message =~ 'call (the )?issuer|refer to (card )?issuer|call for authori'", Priority: 9, Error: response.CallIssuer},
		{ID: "invalid_number", Expression: "message =~ '(invalid|incorrect|bad) (credit )?card number|card number is invalid'", Priority: 10, Error: response.IncorrectNumber},
		{ID: "invalid_amount", Expression: "message =~ 'invalid amount|amount (is )?(invalid|too)'", Priority: 11, Error: response.InvalidAmount},
		{ID: "declined", Expression: "message =~ 'declin|do not honor'", Priority: 20, Error: response.CardDeclined},
	}
}

// NewDefaultClassifier compiles DefaultRules.
func NewDefaultClassifier(logger *zap.Logger) *DeclineClassifier {
	c, err := NewDeclineClassifier(DefaultRules(), logger)
	if err != nil {
		panic(err)
	}
	return c
}
