package authz

import "fmt"

// AuthorizationRequest names the team a request addresses and the caller.
type AuthorizationRequest struct {
	TeamID string
	UserID string
}

type Outcome int

const (
	OutcomeGranted Outcome = iota + 1
	OutcomeDenied
	OutcomeResolutionError
	OutcomeLookupError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGranted:
		return "granted"
	case OutcomeDenied:
		return "denied"
	case OutcomeResolutionError:
		return "resolution_error"
	case OutcomeLookupError:
		return "lookup_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// AuthzDecision represents the authorization decision returned by the domain service.
// Allow is true only for OutcomeGranted; Err carries the cause of any other outcome.
//
//nolint:revive // AuthzDecision keeps the domain name in the type for clarity
type AuthzDecision struct {
	Outcome Outcome
	Allow   bool
	TeamID  string
	UserID  string
	Reason  string
	Err     error
}

func Granted(req AuthorizationRequest) *AuthzDecision {
	return &AuthzDecision{
		Outcome: OutcomeGranted,
		Allow:   true,
		TeamID:  req.TeamID,
		UserID:  req.UserID,
	}
}

func Denied(req AuthorizationRequest, err error) *AuthzDecision {
	return deny(OutcomeDenied, req, err)
}

func ResolutionFailed(req AuthorizationRequest, err error) *AuthzDecision {
	return deny(OutcomeResolutionError, req, err)
}

func LookupFailed(req AuthorizationRequest, err error) *AuthzDecision {
	return deny(OutcomeLookupError, req, err)
}

func deny(outcome Outcome, req AuthorizationRequest, err error) *AuthzDecision {
	d := &AuthzDecision{
		Outcome: outcome,
		TeamID:  req.TeamID,
		UserID:  req.UserID,
		Err:     err,
	}
	if err != nil {
		d.Reason = err.Error()
	}
	return d
}
