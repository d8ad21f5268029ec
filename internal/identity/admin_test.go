package identity

import (
	"testing"

	"github.com/velvetfeed/velvetfeed-backend/pkg/config"
)

func TestResolverMatchesNormalizedEmail(t *testing.T) {
	r := NewResolver(config.AdminConfig{Email: " Operator@Velvetfeed.App "})

	if !r.HasAdminEmail() {
		t.Fatal("expected admin email to be configured")
	}
	if !r.IsAdmin("operator@velvetfeed.app") {
		t.Fatal("expected normalized match")
	}
	if !r.IsAdmin("  OPERATOR@velvetfeed.APP  ") {
		t.Fatal("expected case/whitespace-insensitive match")
	}
	if r.IsAdmin("someone@velvetfeed.app") {
		t.Fatal("expected non-operator to be denied")
	}
}

func TestResolverEmptyConfigDisablesAdmin(t *testing.T) {
	r := NewResolver(config.AdminConfig{})

	if r.HasAdminEmail() {
		t.Fatal("expected admin capability disabled")
	}
	// An empty configured email must never mean "matches everyone".
	if r.IsAdmin("") {
		t.Fatal("empty identity must not match empty config")
	}
	if r.IsAdmin("anyone@x.com") {
		t.Fatal("no identity may be admin without config")
	}
}

func TestResolverEmptyIdentityNeverMatches(t *testing.T) {
	r := NewResolver(config.AdminConfig{Email: "operator@velvetfeed.app"})
	if r.IsAdmin("") || r.IsAdmin("   ") {
		t.Fatal("empty identity must never match")
	}
}
