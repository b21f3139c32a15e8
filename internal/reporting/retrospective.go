package reporting

import (
	"sync"
	"time"

	"github.com/yourorg/payment-gateway/internal/response"
)

// LogEntry is one processed gateway operation.
type LogEntry struct {
	Timestamp   time.Time
	RequestID   string
	Gateway     string // Registry name, e.g. "stripe"
	Operation   string // e.g. "authorize"
	Success     bool
	ErrorCode   string // Canonical error, empty on success
	Message     string
	Amount      int64 // Minor units, 0 for operations without an amount
	Currency    string
	Test        bool
	FraudReview bool
}

// NewLogEntry records res for gateway and operation.
func NewLogEntry(ts time.Time, requestID, gateway, operation string, amount int64, currency string, res response.Response) LogEntry {
	return LogEntry{
		Timestamp:   ts,
		RequestID:   requestID,
		Gateway:     gateway,
		Operation:   operation,
		Success:     res.Success,
		ErrorCode:   string(res.ErrorCode),
		Message:     res.Message,
		Amount:      amount,
		Currency:    currency,
		Test:        res.Test,
		FraudReview: res.FraudReview,
	}
}

// moneyMovingOperations contribute to processed amounts when they succeed.
var moneyMovingOperations = map[string]bool{"purchase": true, "capture": true}

// RetrospectiveReport summarizes gateway activity over a set of log entries.
type RetrospectiveReport struct {
	TotalOperations      int
	SuccessfulOperations int
	FailedOperations     int
	FraudReviews         int
	TestOperations       int
	TotalAmountProcessed int64            // Sum of successful purchase and capture amounts
	AmountByCurrency     map[string]int64 // Same sum, broken down by currency
	ErrorBreakdown       map[string]int   // Count of each canonical error code
	GatewayUsage         map[string]int
	OperationCounts      map[string]int
	DateFrom             time.Time
	DateTo               time.Time
	ProcessingDuration   time.Duration // Time covered by the logs
}

// RetrospectiveReporter generates retrospective reports from log entries.
type RetrospectiveReporter struct{}

// NewRetrospectiveReporter creates a new RetrospectiveReporter.
func NewRetrospectiveReporter() *RetrospectiveReporter {
	return &RetrospectiveReporter{}
}

func newReport() *RetrospectiveReport {
	return &RetrospectiveReport{
		AmountByCurrency: make(map[string]int64),
		ErrorBreakdown:   make(map[string]int),
		GatewayUsage:     make(map[string]int),
		OperationCounts:  make(map[string]int),
	}
}

// GenerateRetrospective analyzes logs and produces a RetrospectiveReport.
func (rr *RetrospectiveReporter) GenerateRetrospective(logs []LogEntry) (*RetrospectiveReport, error) {
	report := newReport()
	if len(logs) == 0 {
		return report, nil
	}

	report.DateFrom = logs[0].Timestamp
	report.DateTo = logs[0].Timestamp
	for _, log := range logs {
		report.TotalOperations++

		if log.Timestamp.Before(report.DateFrom) {
			report.DateFrom = log.Timestamp
		}
		if log.Timestamp.After(report.DateTo) {
			report.DateTo = log.Timestamp
		}
		if log.Gateway != "" {
			report.GatewayUsage[log.Gateway]++
		}
		if log.Operation != "" {
			report.OperationCounts[log.Operation]++
		}
		if log.Test {
			report.TestOperations++
		}
		if log.FraudReview {
			report.FraudReviews++
		}

		if log.Success {
			report.SuccessfulOperations++
			if moneyMovingOperations[log.Operation] {
				report.TotalAmountProcessed += log.Amount
				report.AmountByCurrency[log.Currency] += log.Amount
			}
			continue
		}
		report.FailedOperations++
		if log.ErrorCode != "" {
			report.ErrorBreakdown[log.ErrorCode]++
		}
	}

	report.ProcessingDuration = report.DateTo.Sub(report.DateFrom)
	return report, nil
}

// Journal keeps the most recent entries in memory for reporting.
type Journal struct {
	mu       sync.Mutex
	capacity int
	entries  []LogEntry
}

// NewJournal creates a journal holding at most capacity entries (1000 if <= 0).
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Journal{capacity: capacity}
}

// Record appends e, dropping the oldest entry when full.
func (j *Journal) Record(e LogEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.entries) == j.capacity {
		copy(j.entries, j.entries[1:])
		j.entries = j.entries[:len(j.entries)-1]
	}
	j.entries = append(j.entries, e)
}

// Entries returns a copy of the retained entries, oldest first.
func (j *Journal) Entries() []LogEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]LogEntry, len(j.entries))
	copy(out, j.entries)
	return out
}
