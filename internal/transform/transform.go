// Package transform derives chart projections from normalized records.
// Nothing here performs I/O or keeps state.
package transform

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"fitboard/internal/models"
)

// RadarMax is the outer scale of the performance radar.
const RadarMax = 250

var ErrNotCanonical = errors.New("sessions are not a canonical 7-day record")

type ActivityPoint struct {
	Index          int     `json:"index"`
	WeightKg       float64 `json:"weightKg"`
	CaloriesBurned int     `json:"caloriesBurned"`
	DisplayIndex   string  `json:"displayIndex"`
}

// ActivityChart is the daily activity bar chart. The x-axis is the position
// of the day in the record, not its calendar date.
type ActivityChart struct {
	Points    []ActivityPoint `json:"points"`
	WeightMin float64         `json:"weightMin"`
	WeightMax float64         `json:"weightMax"`
}

func FormatActivity(record models.ActivityRecord) []ActivityPoint {
	points := make([]ActivityPoint, 0, len(record))
	for i, entry := range record {
		index := i + 1
		points = append(points, ActivityPoint{
			Index:          index,
			WeightKg:       entry.WeightKg,
			CaloriesBurned: entry.CaloriesBurned,
			DisplayIndex:   strconv.Itoa(index),
		})
	}
	return points
}

// Activity formats the record and pads the weight axis by one kilogram on
// each side.
func Activity(record models.ActivityRecord) ActivityChart {
	chart := ActivityChart{Points: FormatActivity(record)}
	if len(record) == 0 {
		return chart
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, entry := range record {
		lo = math.Min(lo, entry.WeightKg)
		hi = math.Max(hi, entry.WeightKg)
	}
	chart.WeightMin = math.Max(0, math.Floor(lo)-1)
	chart.WeightMax = math.Ceil(hi) + 1
	return chart
}

type SessionPoint struct {
	Position        int    `json:"position"`
	Label           string `json:"label"`
	DurationMinutes int    `json:"durationMinutes"`
	IsGhost         bool   `json:"isGhost"`
}

var weekdayInitials = [7]string{"M", "T", "W", "T", "F", "S", "S"}

// AddGhostPoints turns the 7 weekday entries into 9 chart points: a ghost at
// position 0 copying Monday and a ghost at position 8 copying Sunday, so the
// curve runs from edge to edge. Anything but a canonical 7-entry record
// (including an already padded one) is rejected.
func AddGhostPoints(record models.SessionRecord) ([]SessionPoint, error) {
	if len(record) != len(weekdayInitials) {
		return nil, fmt.Errorf("%w: got %d entries", ErrNotCanonical, len(record))
	}
	for i, entry := range record {
		if entry.Weekday != i+1 {
			return nil, fmt.Errorf("%w: weekday %d at position %d", ErrNotCanonical, entry.Weekday, i+1)
		}
	}

	points := make([]SessionPoint, 0, len(record)+2)
	points = append(points, SessionPoint{
		Position:        0,
		DurationMinutes: record[0].DurationMinutes,
		IsGhost:         true,
	})
	for _, entry := range record {
		points = append(points, SessionPoint{
			Position:        entry.Weekday,
			Label:           weekdayInitials[entry.Weekday-1],
			DurationMinutes: entry.DurationMinutes,
		})
	}
	points = append(points, SessionPoint{
		Position:        len(record) + 1,
		DurationMinutes: record[len(record)-1].DurationMinutes,
		IsGhost:         true,
	})
	return points, nil
}

type RadarPoint struct {
	Category models.Category `json:"category"`
	Label    string          `json:"label"`
	Value    float64         `json:"value"`
	Max      int             `json:"max"`
}

var categoryLabels = map[models.Category]string{
	models.CategoryIntensity: "Intensity",
	models.CategorySpeed:     "Speed",
	models.CategoryStrength:  "Strength",
	models.CategoryEndurance: "Endurance",
	models.CategoryEnergy:    "Energy",
	models.CategoryCardio:    "Cardio",
}

// Performance reorders the canonical record into radar display order.
func Performance(record models.PerformanceRecord) []RadarPoint {
	values := make(map[models.Category]float64, len(record))
	for _, entry := range record {
		if _, seen := values[entry.Category]; !seen {
			values[entry.Category] = entry.Value
		}
	}

	points := make([]RadarPoint, 0, len(models.DisplayCategories))
	for _, category := range models.DisplayCategories {
		points = append(points, RadarPoint{
			Category: category,
			Label:    categoryLabels[category],
			Value:    values[category],
			Max:      RadarMax,
		})
	}
	return points
}

type ScoreChart struct {
	Percentage int `json:"percentage"`
	Remainder  int `json:"remainder"`
}

// ScorePercentage rounds score*100 and clamps it to [0,100].
func ScorePercentage(score models.GoalScore) int {
	v := float64(score)
	if math.IsNaN(v) {
		return 0
	}
	pct := math.Round(v * 100)
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return int(pct)
}

func Score(score models.GoalScore) ScoreChart {
	pct := ScorePercentage(score)
	return ScoreChart{Percentage: pct, Remainder: 100 - pct}
}

type NutritionCard struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value int    `json:"value"`
	Unit  string `json:"unit"`
	Text  string `json:"text"`
}

func Nutrition(n models.KeyNutrition) []NutritionCard {
	cards := []NutritionCard{
		{Key: "calories", Label: "Calories", Value: n.CalorieCount, Unit: "kCal"},
		{Key: "proteins", Label: "Proteins", Value: n.ProteinCount, Unit: "g"},
		{Key: "carbohydrates", Label: "Carbohydrates", Value: n.CarbohydrateCount, Unit: "g"},
		{Key: "lipids", Label: "Lipids", Value: n.LipidCount, Unit: "g"},
	}
	for i := range cards {
		cards[i].Text = groupThousands(cards[i].Value) + cards[i].Unit
	}
	return cards
}

// groupThousands renders 1930 as "1,930".
func groupThousands(v int) string {
	s := strconv.Itoa(v)
	neg := false
	if v < 0 {
		neg, s = true, s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
