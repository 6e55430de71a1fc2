package authz

import (
	"net/http"

	"github.com/astro-web3/teams-gate/internal/domain/authz"
	"github.com/astro-web3/teams-gate/internal/identity"
	"github.com/astro-web3/teams-gate/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

// Evaluator decides the "must be team member" requirement for a request.
type Evaluator interface {
	Evaluate(r *http.Request) *authz.AuthzDecision
}

type evaluator struct {
	resolver      *TeamResolver
	domainService authz.Service
}

func NewEvaluator(resolver *TeamResolver, domainService authz.Service) Evaluator {
	return &evaluator{
		resolver:      resolver,
		domainService: domainService,
	}
}

// Evaluate resolves the target team and the caller, then asks the domain
// service. Either resolution failing denies without touching the cache.
func (e *evaluator) Evaluate(r *http.Request) *authz.AuthzDecision {
	ctx, span := tracer.Start(r.Context(), "app.authz.Evaluate")
	defer span.End()

	var req authz.AuthorizationRequest

	teamID, err := e.resolver.Resolve(r)
	if err != nil {
		span.RecordError(err)
		return authz.ResolutionFailed(req, err)
	}
	req.TeamID = teamID

	userID, err := identity.ObjectID(identity.FromContext(ctx))
	if err != nil {
		span.RecordError(err)
		return authz.ResolutionFailed(req, err)
	}
	req.UserID = userID

	decision := e.domainService.AuthorizeMember(ctx, req)

	span.SetAttributes(
		attribute.Bool("authz.allowed", decision.Allow),
		attribute.String("authz.outcome", decision.Outcome.String()),
	)
	if !decision.Allow {
		span.SetAttributes(attribute.String("authz.reason", decision.Reason))
	}

	return decision
}
