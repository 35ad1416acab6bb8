// internal/domain/assignment.go
package domain

// SlotAssignment binds one skeleton slot to a concrete library exercise.
type SlotAssignment struct {
	SlotID       string `bson:"slotId" json:"slotId"`
	ExerciseID   string `bson:"exerciseId" json:"exerciseId"`
	ExerciseName string `bson:"exerciseName" json:"exerciseName"`
	Note         string `bson:"note,omitempty" json:"note,omitempty"`
}

// ExerciseAssignment is the output of the selector step. Every slot id from
// the skeleton appears exactly once; every exercise id must exist in the
// compressed library.
type ExerciseAssignment struct {
	Assignments       []SlotAssignment `bson:"assignments" json:"assignments"`
	SubstitutionNotes string           `bson:"substitutionNotes,omitempty" json:"substitutionNotes,omitempty"`
}

// BySlot returns the assignments indexed by slot id. Later duplicates win;
// duplicate detection is the validator's job, not this accessor's.
func (a *ExerciseAssignment) BySlot() map[string]SlotAssignment {
	m := make(map[string]SlotAssignment, len(a.Assignments))
	for _, as := range a.Assignments {
		m[as.SlotID] = as
	}
	return m
}
