package identity

import (
	"github.com/velvetfeed/velvetfeed-backend/pkg/config"
)

// Resolver answers whether an identity is the configured operator. Pure
// configuration comparison; no storage involved. It must run server-side for
// every privileged mutation — a client-side check is a capability leak.
type Resolver struct {
	adminEmail string
}

// NewResolver captures the operator identity once at construction.
func NewResolver(cfg config.AdminConfig) *Resolver {
	return &Resolver{adminEmail: Normalize(cfg.Email)}
}

// HasAdminEmail reports whether an operator identity is configured at all.
// Exposed distinctly from IsAdmin so the UI can disable admin affordances
// entirely instead of silently denying one user.
func (r *Resolver) HasAdminEmail() bool {
	return r.adminEmail != ""
}

// IsAdmin reports whether the identity is the operator. An empty configured
// email disables admin rather than matching everyone; an empty normalized
// input never matches.
func (r *Resolver) IsAdmin(rawEmail string) bool {
	if r.adminEmail == "" {
		return false
	}
	normalized := Normalize(rawEmail)
	if normalized == "" {
		return false
	}
	return normalized == r.adminEmail
}
