package invariant

import (
	"fmt"
	"strings"
)

// #region config
// Config holds the plausibility bounds used for warnings.
type Config struct {
	MinRating float64 // ratings below this are implausible
	MaxRating float64 // ratings above this are implausible
}

// DefaultConfig returns bounds wide enough for any 32-answer run from baseline.
func DefaultConfig() Config {
	return Config{
		MinRating: 600,
		MaxRating: 1400,
	}
}

// #endregion config

// #region severity
// Severity separates must-fix errors from should-fix warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// #endregion severity

// #region codes
// Code categorizes an issue.
type Code string

const (
	CodeMissingField       Code = "missing_field"
	CodeMalformed          Code = "malformed"
	CodeSchemaVersion      Code = "schema_version"
	CodeRoundRange         Code = "round_range"
	CodeLaneKeys           Code = "lane_keys"
	CodeRatingBounds       Code = "rating_bounds"
	CodeRatingDrift        Code = "rating_drift"
	CodeTallyMismatch      Code = "tally_mismatch"
	CodeDuplicatePresented Code = "duplicate_presented"
	CodeCurrentMismatch    Code = "current_mismatch"
	CodeUnknownStatement   Code = "unknown_statement"
	CodeHistoryEntry       Code = "history_entry"
)

// #endregion codes

// #region report
// Issue is one finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     Code     `json:"code"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s [%s]: %s", i.Severity, i.Code, i.Field, i.Message)
}

// Report collects every finding for one state.
type Report struct {
	Issues []Issue `json:"issues"`
}

// Errors returns the must-fix findings.
func (r Report) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns the should-fix findings.
func (r Report) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

// OK reports whether there are no errors. Warnings are allowed.
func (r Report) OK() bool {
	return len(r.Errors()) == 0
}

// Clean reports whether there are no findings at all.
func (r Report) Clean() bool {
	return len(r.Issues) == 0
}

// Has reports whether any finding carries code.
func (r Report) Has(code Code) bool {
	for _, i := range r.Issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

func (r Report) String() string {
	if r.Clean() {
		return "no issues"
	}
	lines := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		lines[i] = is.String()
	}
	return strings.Join(lines, "\n")
}

func (r Report) filter(sev Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

func (r *Report) add(sev Severity, code Code, field, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Severity: sev,
		Code:     code,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	})
}

// #endregion report
