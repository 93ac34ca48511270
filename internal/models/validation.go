package models

// ViolationKind identifies which hard constraint an assignment breaks.
type ViolationKind string

const (
	ViolationTimeOff         ViolationKind = "TIME_OFF"
	ViolationAvailability    ViolationKind = "AVAILABILITY"
	ViolationSameDayDuty     ViolationKind = "SAME_DAY_DUTY"
	ViolationScheduleOverlap ViolationKind = "SCHEDULE_OVERLAP"
	ViolationRoleEligibility ViolationKind = "ROLE_ELIGIBILITY"
)

// Violation is one broken hard constraint.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Message string        `json:"message"`
}

// ValidationResult carries every violation found for a candidate assignment.
// It is never partially valid: Valid is true iff Violations is empty.
type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
}

// Add records a violation and flips the result invalid.
func (r *ValidationResult) Add(kind ViolationKind, message string) {
	r.Valid = false
	r.Violations = append(r.Violations, Violation{Kind: kind, Message: message})
}

// NewValidationResult starts from a valid, empty result.
func NewValidationResult() ValidationResult {
	return ValidationResult{Valid: true}
}

// RuleViolationError is returned when a proposal or edit breaks hard
// constraints. It carries the full violation list for the caller.
type RuleViolationError struct {
	Message    string      `json:"message"`
	Violations []Violation `json:"violations"`
}

// Error implements the error interface.
func (e *RuleViolationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
