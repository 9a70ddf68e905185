package services

import "context"

// Actions gated by the authorization collaborator. Assignee checks on
// start/complete are identity comparisons, not Authorizer calls.
const (
	ActionCancelRun = "runs:cancel"
)

// Authorizer is the external authorization collaborator. The engine never
// owns roles; it only asks.
type Authorizer interface {
	Allow(ctx context.Context, userID, action string) bool
}

// StaticAuthorizer grants actions from a fixed user -> actions table. Used in
// development and tests; production deployments plug in their own.
type StaticAuthorizer struct {
	grants map[string]map[string]bool
}

// NewStaticAuthorizer creates an authorizer from a user -> allowed actions map.
func NewStaticAuthorizer(grants map[string][]string) *StaticAuthorizer {
	table := make(map[string]map[string]bool, len(grants))

	for userID, actions := range grants {
		table[userID] = make(map[string]bool, len(actions))
		for _, action := range actions {
			table[userID][action] = true
		}
	}

	return &StaticAuthorizer{grants: table}
}

// Allow reports whether the user may perform the action.
func (a *StaticAuthorizer) Allow(_ context.Context, userID, action string) bool {
	return a.grants[userID][action]
}

// AllowAllAuthorizer grants everything. Development only.
type AllowAllAuthorizer struct{}

func (AllowAllAuthorizer) Allow(_ context.Context, _, _ string) bool {
	return true
}
