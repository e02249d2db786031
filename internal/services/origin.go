package services

import (
	"context"
	"fmt"
	"strings"

	"fitboard/internal/apperr"
	"fitboard/internal/fixtures"
	"fitboard/internal/models"
)

type Origin string

const (
	OriginMock   Origin = "mock"
	OriginRemote Origin = "remote"
)

func ParseOrigin(s string) (Origin, error) {
	switch Origin(strings.ToLower(strings.TrimSpace(s))) {
	case OriginMock:
		return OriginMock, nil
	case OriginRemote:
		return OriginRemote, nil
	default:
		return "", fmt.Errorf("unknown data origin %q, expected %q or %q", s, OriginMock, OriginRemote)
	}
}

// source returns the raw JSON payload of one entity. Both origins produce the
// same pre-normalization shapes.
type source interface {
	fetch(ctx context.Context, e models.Entity, id int) ([]byte, error)
}

// payloadCache is implemented by sources that keep payloads between fetches.
// Only payloads that decoded and passed the shape check are handed to it.
type payloadCache interface {
	remember(e models.Entity, id int, body []byte)
}

type mockSource struct {
	set *fixtures.Set
}

func (m *mockSource) fetch(ctx context.Context, e models.Entity, id int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, ok := m.set.Get(e, id)
	if !ok {
		return nil, apperr.NotFound("mock."+string(e), "user %d", id)
	}
	return raw, nil
}
