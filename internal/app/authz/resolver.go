package authz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/astro-web3/teams-gate/internal/domain/authz"
)

const (
	teamIDParam         = "teamId"
	DefaultMaxBodyBytes = 1 << 20
)

// teamTarget is the only part of a request body the resolver looks at.
type teamTarget struct {
	TeamID *string `json:"teamId"`
}

// TeamResolver finds the team a request addresses: the teamId query
// parameter when a query string is present, otherwise the teamId field of
// the JSON body.
type TeamResolver struct {
	maxBodyBytes int64
}

func NewTeamResolver(maxBodyBytes int64) *TeamResolver {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &TeamResolver{maxBodyBytes: maxBodyBytes}
}

// Resolve never mutates the query string. On the body path it leaves
// r.Body positioned at the start of the same bytes and sets r.GetBody, so
// later binding or proxying sees the untouched payload.
func (tr *TeamResolver) Resolve(r *http.Request) (string, error) {
	if r.URL.RawQuery != "" {
		return r.URL.Query().Get(teamIDParam), nil
	}

	payload, err := tr.buffer(r)
	if err != nil {
		return "", err
	}

	if !utf8.Valid(payload) {
		return "", fmt.Errorf("%w: body is not valid UTF-8", authz.ErrMalformedRequestBody)
	}

	var target teamTarget
	if err := json.Unmarshal(payload, &target); err != nil {
		return "", fmt.Errorf("%w: %w", authz.ErrMalformedRequestBody, err)
	}
	if target.TeamID == nil || *target.TeamID == "" {
		return "", fmt.Errorf("%w: no %s field", authz.ErrMalformedRequestBody, teamIDParam)
	}

	return *target.TeamID, nil
}

// buffer reads the body once and swaps in a replayable copy. The original
// body is left for the server to close.
func (tr *TeamResolver) buffer(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, fmt.Errorf("%w: empty body", authz.ErrMalformedRequestBody)
	}

	original := r.Body
	payload, err := io.ReadAll(io.LimitReader(original, tr.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", authz.ErrMalformedRequestBody, err)
	}
	if int64(len(payload)) > tr.maxBodyBytes {
		r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(payload), original))
		return nil, fmt.Errorf("%w: body exceeds %d bytes", authz.ErrMalformedRequestBody, tr.maxBodyBytes)
	}

	r.Body = io.NopCloser(bytes.NewReader(payload))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}

	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty body", authz.ErrMalformedRequestBody)
	}
	return payload, nil
}
