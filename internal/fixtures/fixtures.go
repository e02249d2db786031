// Package fixtures holds the static raw payloads served by the mock origin
// and by cmd/sport-api.
package fixtures

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"fitboard/internal/models"
)

//go:embed data/*.json
var files embed.FS

type userFile struct {
	User            json.RawMessage `json:"user"`
	Activity        json.RawMessage `json:"activity"`
	AverageSessions json.RawMessage `json:"averageSessions"`
	Performance     json.RawMessage `json:"performance"`
}

func (f userFile) entity(e models.Entity) json.RawMessage {
	switch e {
	case models.EntityUser:
		return f.User
	case models.EntityActivity:
		return f.Activity
	case models.EntityAverageSessions:
		return f.AverageSessions
	case models.EntityPerformance:
		return f.Performance
	default:
		return nil
	}
}

// Set is an immutable collection of raw payloads keyed by user id.
type Set struct {
	users map[int]userFile
}

// Load reads the embedded fixture files named user_<id>.json.
func Load() (*Set, error) {
	entries, err := files.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("read fixtures dir: %w", err)
	}

	set := &Set{users: make(map[int]userFile, len(entries))}
	for _, entry := range entries {
		name := entry.Name()
		idPart := strings.TrimSuffix(strings.TrimPrefix(name, "user_"), ".json")
		id, err := strconv.Atoi(idPart)
		if err != nil {
			return nil, fmt.Errorf("fixture %s: bad file name", name)
		}

		raw, err := files.ReadFile(path.Join("data", name))
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", name, err)
		}
		var f userFile
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("decode fixture %s: %w", name, err)
		}
		set.users[id] = f
	}
	return set, nil
}

// MustLoad is Load for package-level initialisation in binaries and tests.
func MustLoad() *Set {
	set, err := Load()
	if err != nil {
		panic(err)
	}
	return set
}

// Get returns the raw payload of entity for user id. The returned slice is a
// copy.
func (s *Set) Get(e models.Entity, id int) ([]byte, bool) {
	f, ok := s.users[id]
	if !ok {
		return nil, false
	}
	raw := f.entity(e)
	if raw == nil {
		return nil, false
	}
	return append([]byte(nil), raw...), true
}

func (s *Set) IDs() []int {
	ids := make([]int, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
