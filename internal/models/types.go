package models

type UserProfile struct {
	ID        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Age       int    `json:"age"`
}

type KeyNutrition struct {
	CalorieCount      int `json:"calorieCount"`
	ProteinCount      int `json:"proteinCount"`
	CarbohydrateCount int `json:"carbohydrateCount"`
	LipidCount        int `json:"lipidCount"`
}

// GoalScore is the share of the daily goal reached, in [0,1].
type GoalScore float64

type ActivityEntry struct {
	DayLabel       string  `json:"dayLabel"`
	WeightKg       float64 `json:"weightKg"`
	CaloriesBurned int     `json:"caloriesBurned"`
}

type ActivityRecord []ActivityEntry

type SessionEntry struct {
	Weekday         int `json:"weekday"`
	DurationMinutes int `json:"durationMinutes"`
}

// SessionRecord always holds one entry per weekday, Monday (1) to Sunday (7).
type SessionRecord []SessionEntry

type PerformanceEntry struct {
	Category Category `json:"category"`
	Value    float64  `json:"value"`
}

// PerformanceRecord is stored in CanonicalCategories order.
type PerformanceRecord []PerformanceEntry

type UserSummary struct {
	Profile   UserProfile  `json:"profile"`
	Nutrition KeyNutrition `json:"nutrition"`
	Score     GoalScore    `json:"score"`
}

type CanonicalUserBundle struct {
	Profile     UserProfile       `json:"profile"`
	Nutrition   KeyNutrition      `json:"nutrition"`
	Score       GoalScore         `json:"score"`
	Activity    ActivityRecord    `json:"activity"`
	Sessions    SessionRecord     `json:"sessions"`
	Performance PerformanceRecord `json:"performance"`
	Anomalies   []Anomaly         `json:"anomalies,omitempty"`
}

// Anomaly is a recoverable out-of-domain value that was replaced by a default.
type Anomaly struct {
	Entity string `json:"entity"`
	Field  string `json:"field"`
	Value  any    `json:"value"`
	Reason string `json:"reason"`
}
