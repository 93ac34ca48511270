package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCategoryPriorityOrdering(t *testing.T) {
	assert.Less(t, CategoryRecurringDaily.Priority(), CategoryRotationDuty.Priority())
	assert.Less(t, CategoryRotationDuty.Priority(), CategorySupervisory.Priority())
	assert.Less(t, CategorySupervisory.Priority(), CategoryFlexible.Priority())
}

func TestCategorySameDayExclusive(t *testing.T) {
	assert.True(t, CategoryRecurringDaily.SameDayExclusive())
	assert.False(t, CategoryRotationDuty.SameDayExclusive())
	assert.False(t, CategorySupervisory.SameDayExclusive())
	assert.False(t, CategoryFlexible.SameDayExclusive())
}

func TestCategoryPermits(t *testing.T) {
	assert.True(t, CategorySupervisory.Permits(ClassificationSupervisor))
	assert.False(t, CategorySupervisory.Permits(ClassificationTechnician))
	assert.False(t, CategorySupervisory.Permits(ClassificationLead))

	assert.True(t, CategoryFlexible.Permits(ClassificationSupervisor))
	assert.True(t, CategoryFlexible.Permits(ClassificationTechnician))
	assert.True(t, CategoryFlexible.Permits(ClassificationLead))

	assert.False(t, CategoryRecurringDaily.Permits(ClassificationSupervisor))
}

func TestCategoryRotationRole(t *testing.T) {
	assert.Equal(t, RotationRolePrimaryRotating, CategoryRotationDuty.RotationRole())
	assert.Equal(t, RotationRolePrimaryLead, CategorySupervisory.RotationRole())
	assert.Empty(t, CategoryRecurringDaily.RotationRole())
	assert.Empty(t, CategoryFlexible.RotationRole())
}

func TestAvailabilityWindowCovers(t *testing.T) {
	window := AvailabilityWindow{
		DayOfWeek:   "TUESDAY",
		StartMinute: 9 * 60,
		EndMinute:   17 * 60,
		Active:      true,
	}

	tuesdayMorning := time.Date(2025, 6, 10, 10, 30, 0, 0, time.UTC)
	assert.True(t, window.Covers(tuesdayMorning))

	// End minute is exclusive.
	assert.False(t, window.Covers(time.Date(2025, 6, 10, 17, 0, 0, 0, time.UTC)))
	assert.True(t, window.Covers(time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)))

	wednesday := time.Date(2025, 6, 11, 10, 30, 0, 0, time.UTC)
	assert.False(t, window.Covers(wednesday))

	window.Active = false
	assert.False(t, window.Covers(tuesdayMorning))
}

func TestTimeOffIntervalContains(t *testing.T) {
	interval := TimeOffInterval{
		StartDate: time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, interval.Contains(time.Date(2025, 6, 9, 23, 0, 0, 0, time.UTC)))
	assert.True(t, interval.Contains(time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)))
	assert.True(t, interval.Contains(time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)))
	assert.False(t, interval.Contains(time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)))
	assert.False(t, interval.Contains(time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)))
}

func TestProposalStatusLifecycle(t *testing.T) {
	assert.True(t, ProposalStatusProposed.Open())
	assert.True(t, ProposalStatusUserEdited.Open())
	assert.True(t, ProposalStatusApproved.Open())
	assert.False(t, ProposalStatusRejected.Open())
	assert.False(t, ProposalStatusCommitted.Open())

	assert.True(t, ProposalStatusProposed.Editable())
	assert.True(t, ProposalStatusUserEdited.Editable())
	assert.False(t, ProposalStatusApproved.Editable())
	assert.False(t, ProposalStatusRejected.Editable())
	assert.False(t, ProposalStatusCommitted.Editable())
}

func TestEncodeConflictsNeverNull(t *testing.T) {
	assert.JSONEq(t, "[]", string(EncodeConflicts(nil)))

	records := []ConflictRecord{{OtherProposalID: "p2", EmployeeID: "e1", Date: "2025-06-10"}}
	proposal := ScheduleProposal{Conflicts: EncodeConflicts(records)}
	decoded := proposal.ConflictRecords()
	assert.Len(t, decoded, 1)
	assert.Equal(t, "p2", decoded[0].OtherProposalID)
}
