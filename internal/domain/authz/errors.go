package authz

import (
	"errors"

	"github.com/astro-web3/teams-gate/internal/identity"
)

var (
	ErrMalformedRequestBody = errors.New("malformed request body")
	ErrMissingTeamID        = errors.New("missing team id")
	ErrMissingIdentityClaim = identity.ErrMissingIdentityClaim
	ErrDirectoryLookup      = errors.New("directory lookup failed")
	ErrMembershipNotFound   = errors.New("user is not a member of the team")
)
