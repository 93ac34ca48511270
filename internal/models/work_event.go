package models

import "time"

// EventCategory is the closed set of work event kinds. Category-specific
// behaviour hangs off this type so callers switch exhaustively instead of
// branching on raw strings.
type EventCategory string

const (
	CategoryRecurringDaily EventCategory = "RECURRING_DAILY"
	CategoryRotationDuty   EventCategory = "ROTATION_DUTY"
	CategorySupervisory    EventCategory = "SUPERVISORY"
	CategoryFlexible       EventCategory = "FLEXIBLE"
)

// Priority orders categories when due deadlines tie. Lower sorts first;
// categories with same-day constraints outrank the rest.
func (c EventCategory) Priority() int {
	switch c {
	case CategoryRecurringDaily:
		return 0
	case CategoryRotationDuty:
		return 1
	case CategorySupervisory:
		return 2
	case CategoryFlexible:
		return 3
	default:
		return 4
	}
}

// SameDayExclusive reports whether an employee may hold at most one
// assignment of this category per calendar day.
func (c EventCategory) SameDayExclusive() bool {
	switch c {
	case CategoryRecurringDaily:
		return true
	case CategoryRotationDuty, CategorySupervisory, CategoryFlexible:
		return false
	default:
		return false
	}
}

// EligibleClassifications returns the job classifications permitted to take
// events of this category.
func (c EventCategory) EligibleClassifications() []EmployeeClassification {
	switch c {
	case CategoryRecurringDaily:
		return []EmployeeClassification{ClassificationTechnician, ClassificationLead}
	case CategoryRotationDuty:
		return []EmployeeClassification{ClassificationLead, ClassificationTechnician}
	case CategorySupervisory:
		return []EmployeeClassification{ClassificationSupervisor}
	case CategoryFlexible:
		return []EmployeeClassification{ClassificationLead, ClassificationTechnician, ClassificationSupervisor}
	default:
		return nil
	}
}

// Permits reports whether the classification may take this category.
func (c EventCategory) Permits(classification EmployeeClassification) bool {
	for _, allowed := range c.EligibleClassifications() {
		if allowed == classification {
			return true
		}
	}
	return false
}

// RotationRole resolves the rotation directory role consulted first when
// filling this category. Rotation duty follows the rotating-duty roster and
// supervisory events consult the primary-lead entry; the rest are filled from
// the general pool.
func (c EventCategory) RotationRole() RotationRole {
	switch c {
	case CategoryRotationDuty:
		return RotationRolePrimaryRotating
	case CategorySupervisory:
		return RotationRolePrimaryLead
	case CategoryRecurringDaily, CategoryFlexible:
		return ""
	default:
		return ""
	}
}

// WorkEvent is a time-boxed work item created by the external event source.
// The core only ever writes the assigned flag, and only on commit.
type WorkEvent struct {
	ID            string        `db:"id" json:"id"`
	Name          string        `db:"name" json:"name"`
	Category      EventCategory `db:"category" json:"category"`
	EarliestStart time.Time     `db:"earliest_start" json:"earliest_start"`
	DueAt         time.Time     `db:"due_at" json:"due_at"`
	Location      string        `db:"location" json:"location"`
	Assigned      bool          `db:"assigned" json:"assigned"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}
