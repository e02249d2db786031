package dashboard

import (
	"errors"

	"fitboard/internal/aggregate"
	"fitboard/internal/apperr"
	"fitboard/internal/binding"
	"fitboard/internal/models"
	"fitboard/internal/transform"
)

type ChartStatus string

const (
	StatusReady   ChartStatus = "ready"
	StatusLoading ChartStatus = "loading"
	StatusError   ChartStatus = "error"
	StatusIdle    ChartStatus = "idle"
)

const LoadingMessage = "Loading..."

// Chart is what the frontend renders for one panel: data when ready, a
// textual state otherwise.
type Chart[T any] struct {
	Status  ChartStatus `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    *T          `json:"data,omitempty"`
}

type Dashboard struct {
	UserID      int                              `json:"userId"`
	Loading     bool                             `json:"loading"`
	HasError    bool                             `json:"hasError"`
	Errors      map[string]string                `json:"errors,omitempty"`
	Profile     Chart[models.UserProfile]        `json:"profile"`
	Score       Chart[transform.ScoreChart]      `json:"score"`
	Nutrition   Chart[[]transform.NutritionCard] `json:"nutrition"`
	Activity    Chart[transform.ActivityChart]   `json:"activity"`
	Sessions    Chart[[]transform.SessionPoint]  `json:"sessions"`
	Performance Chart[[]transform.RadarPoint]    `json:"performance"`

	// Err combines the chart errors, fetch and projection alike.
	Err error `json:"-"`
}

// Message is the user-facing text for a failed chart.
func Message(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return "User not found"
	case apperr.KindNetwork:
		return "Data service unavailable, please retry later"
	case apperr.KindSchema:
		return "Received malformed data"
	case apperr.KindValidation:
		return "Invalid user id"
	default:
		return "Something went wrong"
	}
}

// project renders one chart from its binding status. A projection error turns
// the chart into an error state.
func project[S, T any](st binding.Status, fn func(S) (T, error)) (Chart[T], error) {
	switch st.Phase {
	case binding.PhaseIdle:
		return Chart[T]{Status: StatusIdle}, nil
	case binding.PhaseLoading:
		return Chart[T]{Status: StatusLoading, Message: LoadingMessage}, nil
	case binding.PhaseFailed:
		return Chart[T]{Status: StatusError, Message: Message(st.Err)}, st.Err
	}

	src, ok := st.Data.(S)
	if !ok {
		return Chart[T]{Status: StatusError, Message: Message(nil)}, errors.New("unexpected chart data type")
	}
	out, err := fn(src)
	if err != nil {
		return Chart[T]{Status: StatusError, Message: Message(err)}, err
	}
	return Chart[T]{Status: StatusReady, Data: &out}, nil
}

func pure[S, T any](fn func(S) T) func(S) (T, error) {
	return func(s S) (T, error) { return fn(s), nil }
}

// Render projects a folded view into the dashboard payload.
func Render(id int, view aggregate.View) *Dashboard {
	d := &Dashboard{
		UserID:  id,
		Loading: view.Loading,
		Errors:  map[string]string{},
	}
	failed := aggregate.View{Errors: map[string]error{}}
	fail := func(chart string, err error) {
		if err == nil {
			return
		}
		d.HasError = true
		d.Errors[chart] = Message(err)
		failed.Errors[chart] = err
	}

	var err error
	user := view.PerChart[ChartUser]

	d.Profile, err = project(user, pure(func(s models.UserSummary) models.UserProfile { return s.Profile }))
	fail(ChartUser, err)
	d.Score, _ = project(user, pure(func(s models.UserSummary) transform.ScoreChart { return transform.Score(s.Score) }))
	d.Nutrition, _ = project(user, pure(func(s models.UserSummary) []transform.NutritionCard { return transform.Nutrition(s.Nutrition) }))

	d.Activity, err = project(view.PerChart[ChartActivity], pure(transform.Activity))
	fail(ChartActivity, err)

	d.Sessions, err = project(view.PerChart[ChartSessions], transform.AddGhostPoints)
	fail(ChartSessions, err)

	d.Performance, err = project(view.PerChart[ChartPerformance], pure(transform.Performance))
	fail(ChartPerformance, err)

	d.Err = failed.Err()
	if len(d.Errors) == 0 {
		d.Errors = nil
	}
	return d
}

// NotFound reports a dashboard where every chart failed because the user is
// unknown.
func (d *Dashboard) NotFound() bool {
	if d.Err == nil {
		return false
	}
	return d.Profile.Status == StatusError &&
		d.Activity.Status == StatusError &&
		d.Sessions.Status == StatusError &&
		d.Performance.Status == StatusError &&
		errors.Is(d.Err, apperr.ErrNotFound)
}
