// internal/domain/validation.go
package domain

// IssueType separates blocking defects from advisories.
type IssueType string

const (
	IssueError   IssueType = "error"
	IssueWarning IssueType = "warning"
)

// IssueCategory identifies the validation check that produced an issue.
type IssueCategory string

const (
	CategoryExcessiveExercises     IssueCategory = "excessive_exercises"
	CategoryEquipmentViolation     IssueCategory = "equipment_violation"
	CategoryInjuryConflict         IssueCategory = "injury_conflict"
	CategoryDuplicateExercise      IssueCategory = "duplicate_exercise"
	CategoryMissingExercise        IssueCategory = "missing_exercise"
	CategoryDifficultyCeiling      IssueCategory = "difficulty_ceiling"
	CategoryDifficultyMismatch     IssueCategory = "difficulty_mismatch"
	CategoryMissingMovementPattern IssueCategory = "missing_movement_pattern"
	CategoryPushPullImbalance      IssueCategory = "push_pull_imbalance"
)

// ValidationIssue is one detected defect in a generated program.
type ValidationIssue struct {
	Type     IssueType     `bson:"type" json:"type"`
	Category IssueCategory `bson:"category" json:"category"`
	Message  string        `bson:"message" json:"message"`
	SlotID   string        `bson:"slotId,omitempty" json:"slotId,omitempty"`
}

// ValidationResult is the deterministic verdict on a fully assembled program.
// Pass is true if and only if zero issues have type "error".
type ValidationResult struct {
	Pass    bool              `bson:"pass" json:"pass"`
	Issues  []ValidationIssue `bson:"issues" json:"issues"`
	Summary string            `bson:"summary" json:"summary"`
}

// ErrorCount returns the number of blocking issues.
func (r *ValidationResult) ErrorCount() int {
	n := 0
	for _, is := range r.Issues {
		if is.Type == IssueError {
			n++
		}
	}
	return n
}

// WarningCount returns the number of advisory issues.
func (r *ValidationResult) WarningCount() int {
	n := 0
	for _, is := range r.Issues {
		if is.Type == IssueWarning {
			n++
		}
	}
	return n
}

// DominantErrorCategory returns the error category with the most issues, or
// "" when there are no errors. Ties resolve to the category seen first in
// issue order so repeated runs pick the same restart step.
func (r *ValidationResult) DominantErrorCategory() IssueCategory {
	counts := make(map[IssueCategory]int)
	var order []IssueCategory
	for _, is := range r.Issues {
		if is.Type != IssueError {
			continue
		}
		if counts[is.Category] == 0 {
			order = append(order, is.Category)
		}
		counts[is.Category]++
	}
	var best IssueCategory
	bestN := 0
	for _, c := range order {
		if counts[c] > bestN {
			best, bestN = c, counts[c]
		}
	}
	return best
}
