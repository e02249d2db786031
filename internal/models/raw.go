package models

// Raw shapes as served by both origins, before normalization. Pointer fields
// keep an absent key distinguishable from a zero value.

type RawUserInfos struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Age       *int    `json:"age"`
}

type RawKeyData struct {
	CalorieCount      *int `json:"calorieCount"`
	ProteinCount      *int `json:"proteinCount"`
	CarbohydrateCount *int `json:"carbohydrateCount"`
	LipidCount        *int `json:"lipidCount"`
}

// RawUser carries the goal score under either todayScore or score, depending
// on the record.
type RawUser struct {
	ID         *int          `json:"id"`
	UserInfos  *RawUserInfos `json:"userInfos"`
	TodayScore *float64      `json:"todayScore"`
	Score      *float64      `json:"score"`
	KeyData    *RawKeyData   `json:"keyData"`
}

type RawActivitySession struct {
	Day      *string  `json:"day"`
	Kilogram *float64 `json:"kilogram"`
	Calories *int     `json:"calories"`
}

type RawActivity struct {
	UserID   *int                 `json:"userId"`
	Sessions []RawActivitySession `json:"sessions"`
}

type RawAverageSession struct {
	Day           *int `json:"day"`
	SessionLength *int `json:"sessionLength"`
}

type RawAverageSessions struct {
	UserID   *int                `json:"userId"`
	Sessions []RawAverageSession `json:"sessions"`
}

type RawPerformanceValue struct {
	Value *float64 `json:"value"`
	Kind  *int     `json:"kind"`
}

// RawPerformance maps numeric kind ids (as JSON object keys) to labels.
type RawPerformance struct {
	UserID *int                  `json:"userId"`
	Kind   map[string]string     `json:"kind"`
	Data   []RawPerformanceValue `json:"data"`
}
