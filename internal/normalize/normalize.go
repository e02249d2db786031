// Package normalize maps raw source records into the canonical schema.
//
// Every function is pure. Missing optional fields fall back to documented
// defaults (0, "---", "unknown"); out-of-domain values are replaced by a
// default and reported as models.Anomaly. Only structurally unrecoverable input
// (an absent sessions or data array, a user without id) returns an error.
package normalize

import (
	"math"
	"strconv"
	"strings"

	"fitboard/internal/apperr"
	"fitboard/internal/models"
)

// MissingText replaces absent textual fields.
const MissingText = "---"

const (
	firstWeekday = 1
	lastWeekday  = 7
)

func anomaly(entity, field string, value any, reason string) models.Anomaly {
	return models.Anomaly{Entity: entity, Field: field, Value: value, Reason: reason}
}

func text(v *string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return MissingText
	}
	return *v
}

func count(entity, field string, v *int, anomalies *[]models.Anomaly) int {
	if v == nil {
		return 0
	}
	if *v < 0 {
		*anomalies = append(*anomalies, anomaly(entity, field, *v, "negative value replaced by 0"))
		return 0
	}
	return *v
}

// Score coalesces todayScore and score, first present wins, defaulting to 0.
func Score(raw models.RawUser) (models.GoalScore, []models.Anomaly) {
	var (
		v     float64
		field string
	)
	switch {
	case raw.TodayScore != nil:
		v, field = *raw.TodayScore, "todayScore"
	case raw.Score != nil:
		v, field = *raw.Score, "score"
	default:
		return 0, nil
	}

	switch {
	case math.IsNaN(v):
		return 0, []models.Anomaly{anomaly("user", field, nil, "NaN replaced by 0")}
	case v < 0:
		return 0, []models.Anomaly{anomaly("user", field, v, "clamped to 0")}
	case v > 1:
		return 1, []models.Anomaly{anomaly("user", field, v, "clamped to 1")}
	}
	return models.GoalScore(v), nil
}

func User(raw models.RawUser) (models.UserProfile, error) {
	if raw.ID == nil {
		return models.UserProfile{}, apperr.Schema("normalize.user", "missing id")
	}
	if *raw.ID <= 0 {
		return models.UserProfile{}, apperr.Schema("normalize.user", "non-positive id %d", *raw.ID)
	}

	profile := models.UserProfile{
		ID:        *raw.ID,
		FirstName: MissingText,
		LastName:  MissingText,
	}
	if info := raw.UserInfos; info != nil {
		profile.FirstName = text(info.FirstName)
		profile.LastName = text(info.LastName)
		if info.Age != nil && *info.Age > 0 {
			profile.Age = *info.Age
		}
	}
	return profile, nil
}

func KeyNutrition(raw *models.RawKeyData) (models.KeyNutrition, []models.Anomaly) {
	if raw == nil {
		return models.KeyNutrition{}, nil
	}
	var anomalies []models.Anomaly
	return models.KeyNutrition{
		CalorieCount:      count("keyData", "calorieCount", raw.CalorieCount, &anomalies),
		ProteinCount:      count("keyData", "proteinCount", raw.ProteinCount, &anomalies),
		CarbohydrateCount: count("keyData", "carbohydrateCount", raw.CarbohydrateCount, &anomalies),
		LipidCount:        count("keyData", "lipidCount", raw.LipidCount, &anomalies),
	}, anomalies
}

// Summary normalizes the three entities served by the user endpoint.
func Summary(raw models.RawUser) (models.UserSummary, []models.Anomaly, error) {
	profile, err := User(raw)
	if err != nil {
		return models.UserSummary{}, nil, err
	}
	nutrition, anomalies := KeyNutrition(raw.KeyData)
	score, scoreAnomalies := Score(raw)

	return models.UserSummary{
		Profile:   profile,
		Nutrition: nutrition,
		Score:     score,
	}, append(anomalies, scoreAnomalies...), nil
}

func Activity(raw models.RawActivity) (models.ActivityRecord, []models.Anomaly, error) {
	if raw.Sessions == nil {
		return nil, nil, apperr.Schema("normalize.activity", "missing sessions")
	}

	var anomalies []models.Anomaly
	record := make(models.ActivityRecord, 0, len(raw.Sessions))
	for _, s := range raw.Sessions {
		entry := models.ActivityEntry{
			DayLabel:       text(s.Day),
			CaloriesBurned: count("activity", "calories", s.Calories, &anomalies),
		}
		if s.Kilogram != nil {
			if *s.Kilogram < 0 || math.IsNaN(*s.Kilogram) {
				anomalies = append(anomalies, anomaly("activity", "kilogram", *s.Kilogram, "replaced by 0"))
			} else {
				entry.WeightKg = *s.Kilogram
			}
		}
		record = append(record, entry)
	}
	return record, anomalies, nil
}

// Sessions emits exactly one entry per weekday 1..7. A weekday repeated in
// the input keeps its last occurrence.
func Sessions(raw models.RawAverageSessions) (models.SessionRecord, []models.Anomaly, error) {
	if raw.Sessions == nil {
		return nil, nil, apperr.Schema("normalize.sessions", "missing sessions")
	}

	var anomalies []models.Anomaly
	byDay := make(map[int]int, lastWeekday)
	for _, s := range raw.Sessions {
		if s.Day == nil {
			anomalies = append(anomalies, anomaly("sessions", "day", nil, "entry without weekday ignored"))
			continue
		}
		day := *s.Day
		if day < firstWeekday || day > lastWeekday {
			anomalies = append(anomalies, anomaly("sessions", "day", day, "weekday out of range ignored"))
			continue
		}
		if _, seen := byDay[day]; seen {
			anomalies = append(anomalies, anomaly("sessions", "day", day, "duplicate weekday, last occurrence kept"))
		}
		byDay[day] = count("sessions", "sessionLength", s.SessionLength, &anomalies)
	}

	record := make(models.SessionRecord, 0, lastWeekday)
	for day := firstWeekday; day <= lastWeekday; day++ {
		record = append(record, models.SessionEntry{Weekday: day, DurationMinutes: byDay[day]})
	}
	return record, anomalies, nil
}

// ResolvedEntry is one raw performance value with its kind id resolved.
type ResolvedEntry struct {
	Category models.Category
	Value    float64
}

// ResolvedEntries resolves every kind id through the mapping, in input order.
// Ids absent from the mapping resolve to models.UnknownCategory; no entry is
// dropped.
func ResolvedEntries(kind map[string]string, data []models.RawPerformanceValue) ([]ResolvedEntry, []models.Anomaly) {
	var anomalies []models.Anomaly
	entries := make([]ResolvedEntry, 0, len(data))
	for _, d := range data {
		category := models.UnknownCategory
		if d.Kind != nil {
			if label, ok := kind[strconv.Itoa(*d.Kind)]; ok && strings.TrimSpace(label) != "" {
				category = models.Category(strings.ToLower(strings.TrimSpace(label)))
				if !category.Known() {
					anomalies = append(anomalies, anomaly("performance", "kind", label, "label outside the known categories"))
				}
			} else {
				anomalies = append(anomalies, anomaly("performance", "kind", *d.Kind, "id missing from mapping"))
			}
		} else {
			anomalies = append(anomalies, anomaly("performance", "kind", nil, "entry without kind"))
		}

		var value float64
		if d.Value != nil {
			if *d.Value < 0 || math.IsNaN(*d.Value) {
				anomalies = append(anomalies, anomaly("performance", "value", *d.Value, "replaced by 0"))
			} else {
				value = *d.Value
			}
		}
		entries = append(entries, ResolvedEntry{Category: category, Value: value})
	}
	return entries, anomalies
}

// Performance returns the six canonical categories in storage order. The first
// resolved entry of a category provides its value; categories without an entry
// are 0.
func Performance(kind map[string]string, data []models.RawPerformanceValue) (models.PerformanceRecord, []models.Anomaly, error) {
	if data == nil {
		return nil, nil, apperr.Schema("normalize.performance", "missing data")
	}

	entries, anomalies := ResolvedEntries(kind, data)
	record := make(models.PerformanceRecord, 0, len(models.CanonicalCategories))
	for _, category := range models.CanonicalCategories {
		entry := models.PerformanceEntry{Category: category}
		for _, e := range entries {
			if e.Category == category {
				entry.Value = e.Value
				break
			}
		}
		record = append(record, entry)
	}
	return record, anomalies, nil
}

// Bundle normalizes the four raw payloads of one user into a fresh bundle.
func Bundle(
	user models.RawUser,
	activity models.RawActivity,
	sessions models.RawAverageSessions,
	performance models.RawPerformance,
) (*models.CanonicalUserBundle, error) {
	summary, anomalies, err := Summary(user)
	if err != nil {
		return nil, err
	}
	act, a, err := Activity(activity)
	if err != nil {
		return nil, err
	}
	anomalies = append(anomalies, a...)
	sess, a, err := Sessions(sessions)
	if err != nil {
		return nil, err
	}
	anomalies = append(anomalies, a...)
	perf, a, err := Performance(performance.Kind, performance.Data)
	if err != nil {
		return nil, err
	}
	anomalies = append(anomalies, a...)

	return &models.CanonicalUserBundle{
		Profile:     summary.Profile,
		Nutrition:   summary.Nutrition,
		Score:       summary.Score,
		Activity:    act,
		Sessions:    sess,
		Performance: perf,
		Anomalies:   anomalies,
	}, nil
}
