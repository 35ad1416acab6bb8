// internal/domain/skeleton.go
package domain

import "fmt"

// SlotRole is the purpose of a slot within a day.
type SlotRole string

const (
	RoleWarmup            SlotRole = "warm_up"
	RolePrimaryCompound   SlotRole = "primary_compound"
	RoleSecondaryCompound SlotRole = "secondary_compound"
	RoleAccessory         SlotRole = "accessory"
	RoleIsolation         SlotRole = "isolation"
	RoleCooldown          SlotRole = "cool_down"
)

// Technique is an intensity technique applied to a slot.
type Technique string

const (
	TechniqueStraightSets Technique = "straight_sets"
	TechniqueDropset      Technique = "dropset"
	TechniqueRestPause    Technique = "rest_pause"
	TechniqueAMRAP        Technique = "amrap"
	TechniqueTempo        Technique = "tempo"
)

// Slot is a placeholder for one exercise position in a program skeleton. It
// is not yet bound to a concrete exercise; the selector fills it later.
type Slot struct {
	ID              string          `bson:"id" json:"id"` // "w{week}d{day}s{n}", unique across the skeleton
	Role            SlotRole        `bson:"role" json:"role"`
	MovementPattern MovementPattern `bson:"movementPattern" json:"movementPattern"`
	TargetMuscles   []string        `bson:"targetMuscles" json:"targetMuscles"`
	Sets            int             `bson:"sets" json:"sets"`
	Reps            string          `bson:"reps" json:"reps"` // e.g. "8-12", "5", "AMRAP"
	RestSec         int             `bson:"restSec" json:"restSec"`
	RPE             float64         `bson:"rpe,omitempty" json:"rpe,omitempty"`
	Tempo           string          `bson:"tempo,omitempty" json:"tempo,omitempty"`
	GroupTag        string          `bson:"groupTag,omitempty" json:"groupTag,omitempty"` // shared tag = superset/giant-set/circuit
	Technique       Technique       `bson:"technique,omitempty" json:"technique,omitempty"`
}

// SkeletonDay is one training day within a week.
type SkeletonDay struct {
	DayOfWeek int    `bson:"dayOfWeek" json:"dayOfWeek"` // 1 (Mon) - 7 (Sun)
	Label     string `bson:"label" json:"label"`         // e.g. "Upper A"
	Focus     string `bson:"focus,omitempty" json:"focus,omitempty"`
	Slots     []Slot `bson:"slots" json:"slots"`
}

// SkeletonWeek is one week of the program with its phase and intensity.
type SkeletonWeek struct {
	Number            int           `bson:"number" json:"number"` // 1-based
	Phase             string        `bson:"phase" json:"phase"`   // e.g. "accumulation", "deload"
	IntensityModifier float64       `bson:"intensityModifier" json:"intensityModifier"` // 1.0 = baseline
	Days              []SkeletonDay `bson:"days" json:"days"`
}

// ProgramSkeleton is the output of the architect step: weeks, days and slots
// with prescriptions but no concrete exercises. Slot ids are unique across
// the whole skeleton and every slot must later receive exactly one exercise
// assignment.
type ProgramSkeleton struct {
	Name  string         `bson:"name" json:"name"`
	Weeks []SkeletonWeek `bson:"weeks" json:"weeks"`
}

// SlotID builds the canonical id for a slot position.
func SlotID(week, day, n int) string {
	return fmt.Sprintf("w%dd%ds%d", week, day, n)
}

// SlotIDs returns every slot id in skeleton order (weeks, days, slots).
func (s *ProgramSkeleton) SlotIDs() []string {
	var ids []string
	for _, w := range s.Weeks {
		for _, d := range w.Days {
			for _, sl := range d.Slots {
				ids = append(ids, sl.ID)
			}
		}
	}
	return ids
}

// SlotCount returns the total number of slots in the skeleton.
func (s *ProgramSkeleton) SlotCount() int {
	n := 0
	for _, w := range s.Weeks {
		for _, d := range w.Days {
			n += len(d.Slots)
		}
	}
	return n
}
