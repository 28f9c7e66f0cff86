// Package audit provides security audit logging for SIEM consumption.
// Security-relevant events are logged in structured JSON so they can be
// filtered and alerted on downstream.
package audit

import (
	"context"

	libinjection "github.com/corazawaf/libinjection-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventInjectionAttempt is logged when libinjection detects SQL
	// injection patterns in submitted record values.
	EventInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventSuspiciousLogic is logged when submitted computation logic
	// carries injection-shaped string literals.
	EventSuspiciousLogic SecurityEventType = "suspicious_computation_logic"
)

// InjectionDetails contains specifics of a detected injection pattern.
type InjectionDetails struct {
	Column      string `json:"column,omitempty"`
	Value       string `json:"value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	Record      int    `json:"record,omitempty"`
}

// SecurityAuditor logs security events for SIEM consumption. Screening is
// advisory: data reaches the database only through parameterized statements
// and computation logic only through the sandbox grammar, so detections are
// recorded for the audit trail rather than rejected.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger
// namespace for easy filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// ScreenRecords checks string values in a submitted batch for SQL injection
// patterns and logs a warning event per detection.
func (a *SecurityAuditor) ScreenRecords(ctx context.Context, featureID uuid.UUID, version string, records []map[string]any) {
	for i, record := range records {
		for column, value := range record {
			str, ok := value.(string)
			if !ok {
				continue
			}
			isSQLi, fingerprint := libinjection.IsSQLi(str)
			if !isSQLi {
				continue
			}
			a.logger.Warn("Injection pattern in submitted record value",
				zap.String("event_type", string(EventInjectionAttempt)),
				zap.String("feature_id", featureID.String()),
				zap.String("version", version),
				zap.Any("details", InjectionDetails{
					Column:      column,
					Value:       str,
					Fingerprint: string(fingerprint),
					Record:      i,
				}),
			)
		}
	}
}

// ScreenLogic checks the string literals of computation logic for
// injection-shaped content before a feature definition is stored. Only
// literals are screened: the expression grammar itself (identifiers, calls,
// operators) trips SQL tokenizers on ordinary programs.
func (a *SecurityAuditor) ScreenLogic(ctx context.Context, featureName, logic string) {
	for _, literal := range stringLiterals(logic) {
		isSQLi, fingerprint := libinjection.IsSQLi(literal)
		if !isSQLi {
			continue
		}
		a.logger.Warn("Injection pattern in computation logic literal",
			zap.String("event_type", string(EventSuspiciousLogic)),
			zap.String("feature", featureName),
			zap.Any("details", InjectionDetails{
				Value:       literal,
				Fingerprint: string(fingerprint),
			}),
		)
	}
}

// stringLiterals extracts the contents of single- and double-quoted spans.
// An unterminated span is returned as-is; comments (# to end of line) are
// skipped so quotes inside them do not open a span.
func stringLiterals(logic string) []string {
	var literals []string
	for i := 0; i < len(logic); i++ {
		switch c := logic[i]; c {
		case '#':
			for i < len(logic) && logic[i] != '\n' {
				i++
			}
		case '\'', '"':
			start := i + 1
			end := start
			for end < len(logic) && logic[end] != c && logic[end] != '\n' {
				end++
			}
			literals = append(literals, logic[start:end])
			i = end
		}
	}
	return literals
}
