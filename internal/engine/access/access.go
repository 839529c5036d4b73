package access

import (
	"context"
	"errors"
	"fmt"

	"cleanflow/internal/domain"
	"cleanflow/internal/repo"
)

// ErrUnauthenticated means no valid session resolved to an account.
var ErrUnauthenticated = errors.New("authentication required")

// ForbiddenError indicates the account's role is not in the required set.
type ForbiddenError struct {
	Role domain.Role
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("role %s not permitted", e.Role)
}

// PendingApprovalError is the holding-state signal for residents whose
// profile has not yet been approved. It is not a hard failure: callers
// render a waiting view instead of an error page.
type PendingApprovalError struct {
	AccountID string
}

func (e PendingApprovalError) Error() string {
	return "account pending administrator approval"
}

// Identity is the request-scoped result of authorization: who is acting,
// with which role, and (for residents) whether they are approved. It is
// threaded explicitly through every core call; there is no ambient session.
type Identity struct {
	AccountID string
	Role      domain.Role
	Approved  bool
}

// Gate resolves accounts to effective identities against the store.
type Gate struct {
	Repo repo.Repo
}

// Authorize resolves accountID to its role and approval status and checks it
// against required. No side effects; safe on every protected operation.
// Residents resolve with a PendingApprovalError until approved, carrying the
// identity so callers can still render the holding state.
func (g Gate) Authorize(ctx context.Context, accountID string, required ...domain.Role) (Identity, error) {
	if accountID == "" {
		return Identity{}, ErrUnauthenticated
	}
	role, err := g.Repo.GetRole(ctx, accountID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Identity{}, ErrUnauthenticated
		}
		return Identity{}, err
	}
	if len(required) > 0 && !roleIn(role, required) {
		return Identity{}, ForbiddenError{Role: role}
	}
	ident := Identity{AccountID: accountID, Role: role, Approved: true}
	if role == domain.RoleResident {
		p, err := g.Repo.GetProfile(ctx, accountID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return Identity{}, ErrUnauthenticated
			}
			return Identity{}, err
		}
		ident.Approved = p.IsApproved
		if !p.IsApproved {
			return ident, PendingApprovalError{AccountID: accountID}
		}
	}
	return ident, nil
}

func roleIn(role domain.Role, set []domain.Role) bool {
	for _, r := range set {
		if r == role {
			return true
		}
	}
	return false
}
