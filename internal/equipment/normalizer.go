// internal/equipment/normalizer.go
package equipment

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// fuzzyThreshold is the minimum similarity for a fuzzy match to be accepted.
const fuzzyThreshold = 0.7

// canonical is the fixed vocabulary of equipment tags. Kept sorted so fuzzy
// matching iterates in a stable order.
var canonical = []string{
	"barbell",
	"bench",
	"bike",
	"bodyweight",
	"cable",
	"dip_station",
	"dumbbell",
	"ez_bar",
	"kettlebell",
	"landmine",
	"machine",
	"medicine_ball",
	"plyo_box",
	"pull_up_bar",
	"resistance_band",
	"rower",
	"sled",
	"smith_machine",
	"suspension_trainer",
	"treadmill",
}

var canonicalSet = func() map[string]bool {
	m := make(map[string]bool, len(canonical))
	for _, c := range canonical {
		m[c] = true
	}
	return m
}()

// aliases maps known synonyms (already in key form) to canonical tags.
var aliases = map[string]string{
	"db":            "dumbbell",
	"dbs":           "dumbbell",
	"dumbell":       "dumbbell",
	"dumbells":      "dumbbell",
	"free_weights":  "dumbbell",
	"bb":            "barbell",
	"olympic_bar":   "barbell",
	"trap_bar":      "barbell",
	"hex_bar":       "barbell",
	"kb":            "kettlebell",
	"kettle_bell":   "kettlebell",
	"band":          "resistance_band",
	"bands":         "resistance_band",
	"mini_band":     "resistance_band",
	"resistance_bands": "resistance_band",
	"cables":        "cable",
	"cable_machine": "cable",
	"pulley":        "cable",
	"crossover":     "cable",
	"machines":      "machine",
	"leg_press":     "machine",
	"none":          "bodyweight",
	"body_weight":   "bodyweight",
	"bw":            "bodyweight",
	"no_equipment":  "bodyweight",
	"flat_bench":    "bench",
	"incline_bench": "bench",
	"chin_up_bar":   "pull_up_bar",
	"chinup_bar":    "pull_up_bar",
	"pullup_bar":    "pull_up_bar",
	"bar":           "barbell",
	"smith":         "smith_machine",
	"ez_curl_bar":   "ez_bar",
	"curl_bar":      "ez_bar",
	"med_ball":      "medicine_ball",
	"slam_ball":     "medicine_ball",
	"wall_ball":     "medicine_ball",
	"trx":           "suspension_trainer",
	"rings":         "suspension_trainer",
	"suspension":    "suspension_trainer",
	"box":           "plyo_box",
	"jump_box":      "plyo_box",
	"dip_bars":      "dip_station",
	"parallettes":   "dip_station",
	"erg":           "rower",
	"rowing_machine": "rower",
	"assault_bike":  "bike",
	"spin_bike":     "bike",
	"stationary_bike": "bike",
	"prowler":       "sled",
}

var levenshtein = func() *metrics.Levenshtein {
	m := metrics.NewLevenshtein()
	m.ReplaceCost = 1 // classic edit distance; the default of 2 halves substitution similarity
	return m
}()

// Normalize resolves a free-text equipment name to a canonical tag. Three
// layers, short-circuiting on first match: exact alias/canonical lookup,
// trailing-"s" retry, then fuzzy similarity against the canonical vocabulary
// (accepted only at >= 0.7). Unknown names come back unchanged (in key form)
// so they surface later as a "required but unavailable" validation error
// instead of being silently dropped.
//
// Normalize is deterministic and idempotent: Normalize(Normalize(x)) ==
// Normalize(x) for all inputs.
func Normalize(name string) string {
	key := toKey(name)
	if key == "" {
		return ""
	}

	// Layer 1: exact lookup.
	if canonicalSet[key] {
		return key
	}
	if c, ok := aliases[key]; ok {
		return c
	}

	// Layer 2: singular retry.
	if strings.HasSuffix(key, "s") {
		singular := strings.TrimSuffix(key, "s")
		if canonicalSet[singular] {
			return singular
		}
		if c, ok := aliases[singular]; ok {
			return c
		}
	}

	// Layer 3: fuzzy match against the canonical vocabulary.
	best := ""
	bestScore := 0.0
	for _, c := range canonical {
		score := strutil.Similarity(key, c, levenshtein)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore >= fuzzyThreshold {
		return best
	}

	return key
}

// NormalizeAll maps Normalize over a list, dropping empties and duplicates
// while preserving first-seen order.
func NormalizeAll(names []string) []string {
	var out []string
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		tag := Normalize(n)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// toKey lowercases, trims and collapses separators to underscores so alias
// lookup and the idempotence guarantee are insensitive to spacing.
func toKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.Join(strings.FieldsFunc(key, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	}), "_")
	return key
}
