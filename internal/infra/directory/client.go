package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	httpclient "github.com/astro-web3/teams-gate/pkg/http"
	"github.com/astro-web3/teams-gate/pkg/logger"
)

const membershipPath = "/teams/{teamId}/members/{userId}"

// MembershipChecker answers whether a user currently belongs to a team.
type MembershipChecker interface {
	IsMember(ctx context.Context, teamID, userID string) (bool, error)
}

type rosterClient struct {
	http *httpclient.Client
}

// NewClient returns a checker backed by the team roster HTTP API.
func NewClient(http *httpclient.Client) MembershipChecker {
	return &rosterClient{http: http}
}

func (c *rosterClient) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	// Only the status is consumed; a 200 means member whatever the body holds.
	resp, err := c.http.Get(ctx, membershipPath,
		httpclient.WithPathParams(map[string]string{
			"teamId": teamID,
			"userId": userID,
		}),
	)
	if err != nil {
		return false, fmt.Errorf("roster request failed: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		logger.DebugContext(ctx, "no roster membership",
			slog.String("team_id", teamID),
			slog.String("user_id", userID),
		)
		return false, nil
	default:
		return false, fmt.Errorf("roster lookup failed with status %d: %s", resp.StatusCode(), describe(resp.Body()))
	}
}

func describe(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}
	return string(body)
}
