package services

import (
	"bytes"
	"encoding/json"

	"fitboard/internal/apperr"
	"fitboard/internal/models"
)

// unwrapEnvelope accepts both a bare entity object and the historical
// {"data": {...}} envelope. A "data" array (performance values) is not an
// envelope.
func unwrapEnvelope(raw []byte) []byte {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) != 1 {
		return raw
	}
	inner, ok := fields["data"]
	if !ok {
		return raw
	}
	if trimmed := bytes.TrimSpace(inner); len(trimmed) > 0 && trimmed[0] == '{' {
		return trimmed
	}
	return raw
}

func decode[R any](op string, raw []byte) (R, error) {
	var out R
	if err := json.Unmarshal(unwrapEnvelope(raw), &out); err != nil {
		return out, apperr.Schema(op, "decode: %v", err)
	}
	return out, nil
}

func checkUserID(op string, got *int, id int) error {
	if got != nil && *got != id {
		return apperr.Schema(op, "payload for user %d returned for user %d", *got, id)
	}
	return nil
}

func checkUser(id int, raw *models.RawUser) error {
	const op = "check.user"
	if raw.ID == nil {
		return apperr.Schema(op, "missing id")
	}
	return checkUserID(op, raw.ID, id)
}

func checkActivity(id int, raw *models.RawActivity) error {
	const op = "check.activity"
	if raw.Sessions == nil {
		return apperr.Schema(op, "missing sessions array")
	}
	return checkUserID(op, raw.UserID, id)
}

func checkAverageSessions(id int, raw *models.RawAverageSessions) error {
	const op = "check.average-sessions"
	if raw.Sessions == nil {
		return apperr.Schema(op, "missing sessions array")
	}
	return checkUserID(op, raw.UserID, id)
}

func checkPerformance(id int, raw *models.RawPerformance) error {
	const op = "check.performance"
	if raw.Data == nil {
		return apperr.Schema(op, "missing data array")
	}
	if raw.Kind == nil {
		return apperr.Schema(op, "missing kind mapping")
	}
	return checkUserID(op, raw.UserID, id)
}
