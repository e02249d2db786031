package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"fitboard/internal/config"
	"fitboard/internal/fixtures"
	"fitboard/internal/models"
)

// newMux serves the raw fixture payloads the way the historical sport backend
// does: every payload wrapped in a data envelope, plain text 404s.
func newMux(set *fixtures.Set) *http.ServeMux {
	mux := http.NewServeMux()

	handle := func(e models.Entity) {
		pattern := "GET /user/{id}"
		if e != models.EntityUser {
			pattern += "/" + string(e)
		}

		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.Atoi(r.PathValue("id"))
			if err != nil {
				http.Error(w, "can not get user", http.StatusNotFound)
				return
			}

			raw, ok := set.Get(e, id)
			if !ok {
				slog.Info("Unknown user", "user_id", id, "entity", e)
				http.Error(w, "can not get user", http.StatusNotFound)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"data":%s}`, raw)
		})
	}
	for _, e := range models.Entities {
		handle(e)
	}
	return mux
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.NewConfig()

	set, err := fixtures.Load()
	if err != nil {
		slog.Error("Failed to load fixtures", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%s", cfg.SportAPIPort)
	slog.Info("Sport API listening", "addr", addr, "users", set.IDs())
	if err := http.ListenAndServe(addr, newMux(set)); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
