package request

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/mcoot/chessmatch-go/internal/model"
)

// MaxSessionListLimit caps the number of sessions returned by one listing
const MaxSessionListLimit = 100

// SessionListQuery holds the query parameters of GET /api/v1/sessions
type SessionListQuery struct {
	Status model.SessionStatus
	Limit  int
}

// ParseSessionListQuery validates ?status= and ?limit=
func ParseSessionListQuery(values url.Values) (SessionListQuery, error) {
	q := SessionListQuery{Limit: MaxSessionListLimit}

	if raw := values.Get("status"); raw != "" {
		status := model.SessionStatus(raw)
		switch status {
		case model.SessionStatusWaiting, model.SessionStatusActive, model.SessionStatusFinished:
			q.Status = status
		default:
			return q, errors.New("status must be waiting, active or finished")
		}
	}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return q, errors.New("limit must be a positive integer")
		}
		q.Limit = min(limit, MaxSessionListLimit)
	}

	return q, nil
}
