// Package aggregate folds the states of independent chart bindings into one
// dashboard-level view. It never coordinates the fetches themselves.
package aggregate

import (
	"fmt"
	"sort"

	"fitboard/internal/binding"

	"go.uber.org/multierr"
)

type Source interface {
	Status() binding.Status
}

type View struct {
	PerChart map[string]binding.Status
	Loading  bool
	HasError bool
	Errors   map[string]error
}

func Fold(sources map[string]Source) View {
	v := View{
		PerChart: make(map[string]binding.Status, len(sources)),
		Errors:   make(map[string]error),
	}
	for name, src := range sources {
		st := src.Status()
		v.PerChart[name] = st
		v.Loading = v.Loading || st.Loading
		if st.Err != nil {
			v.HasError = true
			v.Errors[name] = st.Err
		}
	}
	return v
}

// Ready reports whether chart name has data to render, whatever the others do.
func (v View) Ready(name string) bool {
	st, ok := v.PerChart[name]
	return ok && st.Phase == binding.PhaseSuccess
}

// Err combines the chart errors in chart name order, nil when none failed.
func (v View) Err() error {
	names := make([]string, 0, len(v.Errors))
	for name := range v.Errors {
		names = append(names, name)
	}
	sort.Strings(names)

	var err error
	for _, name := range names {
		err = multierr.Append(err, fmt.Errorf("%s: %w", name, v.Errors[name]))
	}
	return err
}
