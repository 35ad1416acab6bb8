package service

import (
	"alcyxob/coach-ai/internal/domain"
	"alcyxob/coach-ai/internal/equipment"
)

// Defaults substituted for missing optional profile fields.
const (
	DefaultSessionLengthMin = 60
	DefaultGoal             = "general_fitness"
)

// CompressLibrary reduces full exercise records to the compact projection the
// model prompts carry. Pure transformation; equipment tags are normalized so
// downstream comparisons work on canonical vocabulary. The result is an
// immutable snapshot of the library at generation time.
func CompressLibrary(exercises []domain.Exercise) []domain.CompressedExercise {
	out := make([]domain.CompressedExercise, 0, len(exercises))
	for _, ex := range exercises {
		out = append(out, domain.CompressedExercise{
			ID:               ex.ID.Hex(),
			Name:             ex.Name,
			Categories:       ex.Categories,
			Difficulty:       ex.Difficulty,
			DifficultyScore:  ex.DifficultyScore,
			PrimaryMuscles:   ex.PrimaryMuscles,
			SecondaryMuscles: ex.SecondaryMuscles,
			MovementPattern:  ex.MovementPattern,
			ForceType:        ex.ForceType,
			Laterality:       ex.Laterality,
			Equipment:        equipment.NormalizeAll(ex.Equipment),
			IsBodyweight:     ex.IsBodyweight,
			IsCompound:       ex.IsCompound,
		})
	}
	return out
}

// NormalizeProfile merges a client profile (possibly nil for anonymous
// requests) with the generation request into the compact summary the agents
// consume. Missing optional fields get sane defaults.
func NormalizeProfile(profile *domain.ClientProfile, req domain.GenerationRequest) domain.NormalizedProfile {
	norm := domain.NormalizedProfile{
		Goals:            req.Goals,
		SessionsPerWeek:  req.SessionsPerWeek,
		DurationWeeks:    req.DurationWeeks,
		SessionLengthMin: req.SessionLengthMin,
		TrainingAge:      domain.DifficultyNovice,
	}

	if profile != nil {
		norm.ClientID = profile.ID.Hex()
		norm.Injuries = profile.Injuries
		norm.Equipment = equipment.NormalizeAll(profile.Equipment)
		norm.MaxDifficultyScore = profile.MaxDifficultyScore
		norm.Notes = profile.Notes
		if profile.TrainingAge != "" {
			norm.TrainingAge = profile.TrainingAge
		}
		if norm.SessionLengthMin == 0 {
			norm.SessionLengthMin = profile.SessionLengthMin
		}
		if len(norm.Goals) == 0 {
			norm.Goals = profile.Goals
		}
	}

	if len(req.EquipmentOverride) > 0 {
		norm.Equipment = equipment.NormalizeAll(req.EquipmentOverride)
	}
	if len(norm.Equipment) == 0 {
		norm.Equipment = []string{"bodyweight"}
	}
	if len(norm.Goals) == 0 {
		norm.Goals = []string{DefaultGoal}
	}
	if norm.SessionLengthMin == 0 {
		norm.SessionLengthMin = DefaultSessionLengthMin
	}

	return norm
}
