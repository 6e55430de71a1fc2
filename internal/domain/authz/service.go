package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/astro-web3/teams-gate/pkg/logger"
	"github.com/astro-web3/teams-gate/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MembershipResolver is the part of MembershipCache the service depends on.
type MembershipResolver interface {
	GetOrCompute(ctx context.Context, teamID, userID string) (bool, error)
}

type Service interface {
	AuthorizeMember(ctx context.Context, req AuthorizationRequest) *AuthzDecision
}

type service struct {
	memberships   MembershipResolver
	meterProvider metric.MeterProvider
	metrics       *gateMetrics
}

type ServiceOption func(*service)

// WithServiceMeterProvider records decision counters on mp instead of the
// global provider.
func WithServiceMeterProvider(mp metric.MeterProvider) ServiceOption {
	return func(s *service) {
		s.meterProvider = mp
	}
}

func NewService(memberships MembershipResolver, opts ...ServiceOption) Service {
	s := &service{memberships: memberships}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newGateMetrics(s.meterProvider)
	return s
}

// AuthorizeMember grants only on a positive membership answer. Lookup
// failures fail closed.
func (s *service) AuthorizeMember(ctx context.Context, req AuthorizationRequest) *AuthzDecision {
	ctx, span := tracer.Start(ctx, "domain.authz.AuthorizeMember")
	defer span.End()

	span.SetAttributes(
		attribute.String("team.id", req.TeamID),
		attribute.String("user.id", req.UserID),
	)

	decision := s.authorize(ctx, req)
	s.metrics.decision(ctx, decision.Outcome)

	span.SetAttributes(
		attribute.Bool("authz.allowed", decision.Allow),
		attribute.String("authz.outcome", decision.Outcome.String()),
	)
	if decision.Err != nil && decision.Outcome != OutcomeDenied {
		span.RecordError(decision.Err)
	}

	return decision
}

func (s *service) authorize(ctx context.Context, req AuthorizationRequest) *AuthzDecision {
	if req.TeamID == "" {
		return ResolutionFailed(req, ErrMissingTeamID)
	}
	if req.UserID == "" {
		return ResolutionFailed(req, ErrMissingIdentityClaim)
	}

	isMember, err := s.memberships.GetOrCompute(ctx, req.TeamID, req.UserID)
	if err != nil {
		attrs := []slog.Attr{
			slog.String("team_id", req.TeamID),
			slog.String("user_id", req.UserID),
			logger.Err(err),
		}
		if errors.Is(err, context.Canceled) {
			logger.InfoContext(ctx, "membership lookup abandoned by caller", attrs...)
		} else {
			logger.ErrorContext(ctx, "membership lookup failed, denying", attrs...)
		}
		return LookupFailed(req, err)
	}

	if !isMember {
		return Denied(req, ErrMembershipNotFound)
	}

	return Granted(req)
}
