package auth

import (
	"context"
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Acme Inc":              "acme-inc",
		"acme-inc":              "acme-inc",
		"  Acme   Inc  ":        "acme-inc",
		"ACME, Inc.":            "acme-inc",
		"Café Olé":              "cafe-ole",
		"Niño & Compañía S.A.":  "nino-compania-s-a",
		"---":                   "",
		"Équipe 42":             "equipe-42",
		"über_tools/2024":       "uber-tools-2024",
	}
	for input, expected := range cases {
		if got := Slugify(input); got != expected {
			t.Fatalf("Slugify(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestSlugifyCollisions(t *testing.T) {
	if Slugify("Acme Inc") != Slugify("acme inc!") {
		t.Fatalf("expected names differing only in case and punctuation to collide")
	}
}

func TestMatchLocale(t *testing.T) {
	cases := map[string]Locale{
		"":                          LocaleEN,
		"es":                        LocaleES,
		"es-MX,es;q=0.9":            LocaleES,
		"en-US,en;q=0.8":            LocaleEN,
		"fr-FR":                     LocaleEN,
		"fr-FR,es;q=0.5":            LocaleES,
		"not a header;;;":           LocaleEN,
	}
	for header, expected := range cases {
		if got := MatchLocale(header); got != expected {
			t.Fatalf("MatchLocale(%q)=%q, want %q", header, got, expected)
		}
	}
}

func TestParseLocaleAndRole(t *testing.T) {
	if l, ok := ParseLocale(" ES "); !ok || l != LocaleES {
		t.Fatalf("expected es, got %q/%v", l, ok)
	}
	if _, ok := ParseLocale("fr"); ok {
		t.Fatalf("fr should not be supported")
	}
	if _, ok := ParseRole("project_manager"); !ok {
		t.Fatalf("project_manager should be a role")
	}
	if _, ok := ParseRole("owner"); ok {
		t.Fatalf("owner should not be a role")
	}
}

func TestRoleAllowed(t *testing.T) {
	gate := []Role{RoleAdmin, RoleProjectManager}
	if !RoleAllowed(RoleProjectManager, gate...) {
		t.Fatalf("project_manager should pass the gate")
	}
	if RoleAllowed(RoleMember, gate...) || RoleAllowed(RoleStakeholder, gate...) {
		t.Fatalf("member and stakeholder must not pass the gate")
	}
	if RoleAllowed(RoleAdmin) {
		t.Fatalf("empty allow-list must deny")
	}
}

func TestInvitationEffectiveStatus(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	inv := Invitation{Status: InvitationPending, ExpiresAt: now.Add(time.Hour)}
	if inv.EffectiveStatus(now) != InvitationPending || !inv.Redeemable(now) {
		t.Fatalf("fresh invitation should be pending")
	}
	inv.ExpiresAt = now.Add(-time.Second)
	if inv.EffectiveStatus(now) != InvitationExpired || inv.Redeemable(now) {
		t.Fatalf("stale invitation should report expired")
	}
	inv.Status = InvitationAccepted
	if inv.EffectiveStatus(now) != InvitationAccepted {
		t.Fatalf("accepted invitation keeps its status past expiry")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := PrincipalFromContext(ctx); ok {
		t.Fatalf("expected no principal")
	}
	p := Principal{UserID: "u1", OrganizationID: "o1", Role: RoleMember, Locale: LocaleEN}
	got, ok := PrincipalFromContext(ContextWithPrincipal(ctx, p))
	if !ok || got != p {
		t.Fatalf("principal not round-tripped: %+v", got)
	}
	if LocaleFromContext(ctx) != LocaleEN {
		t.Fatalf("expected default locale en")
	}
	if LocaleFromContext(ContextWithLocale(ctx, LocaleES)) != LocaleES {
		t.Fatalf("expected locale es")
	}
}
