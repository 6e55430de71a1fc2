package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	appauthz "github.com/astro-web3/teams-gate/internal/app/authz"
	"github.com/astro-web3/teams-gate/internal/config"
	"github.com/astro-web3/teams-gate/internal/domain/authz"
	"github.com/astro-web3/teams-gate/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	ctxKeyTeamID = "teamsgate.team_id"
	ctxKeyUserID = "teamsgate.user_id"
)

// TeamRoutes lists the routes that carry the team-membership requirement.
type TeamRoutes []config.RouteRule

func (rs TeamRoutes) Requires(r *http.Request) bool {
	for _, rule := range rs {
		if !strings.HasPrefix(r.URL.Path, rule.PathPrefix) {
			continue
		}
		if len(rule.Methods) == 0 {
			return true
		}
		for _, m := range rule.Methods {
			if strings.EqualFold(m, r.Method) {
				return true
			}
		}
	}
	return false
}

// requireTeamMember enforces the requirement on matching routes. Every deny
// path aborts with 403; the caller only learns the reason.
func requireTeamMember(evaluator appauthz.Evaluator, routes TeamRoutes) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !routes.Requires(c.Request) {
			c.Next()
			return
		}

		decision := evaluator.Evaluate(c.Request)
		ctx := c.Request.Context()

		if !decision.Allow {
			attrs := []slog.Attr{
				slog.String("outcome", decision.Outcome.String()),
				slog.String("team_id", decision.TeamID),
				slog.String("user_id", decision.UserID),
				slog.String("reason", decision.Reason),
			}
			if decision.Outcome == authz.OutcomeLookupError {
				logger.ErrorContext(ctx, "team membership could not be verified", attrs...)
			} else {
				logger.WarnContext(ctx, "team membership denied", attrs...)
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": publicReason(decision)})
			return
		}

		c.Set(ctxKeyTeamID, decision.TeamID)
		c.Set(ctxKeyUserID, decision.UserID)
		c.Next()
	}
}

var publicReasons = []error{
	authz.ErrMalformedRequestBody,
	authz.ErrMissingTeamID,
	authz.ErrMissingIdentityClaim,
	authz.ErrMembershipNotFound,
	authz.ErrDirectoryLookup,
}

// publicReason trims a deny reason down to its sentinel so transport and
// parser details stay in the logs.
func publicReason(decision *authz.AuthzDecision) string {
	for _, sentinel := range publicReasons {
		if errors.Is(decision.Err, sentinel) {
			return sentinel.Error()
		}
	}
	return "forbidden"
}
