package employee

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSlug(t *testing.T) {
	cases := []struct {
		first, last, want string
	}{
		{"Max", "Muster", "max-muster"},
		{"  Anna ", "MÜLLER", "anna-müller"},
		{"Jean Luc", "Picard", "jean-luc-picard"},
		{"../../.github/x", "Muster", "github-x-muster"},
		{"a/b", "c\\d", "a-b-c-d"},
		{"..", "Muster", "muster"},
		{"O'Brien", "Smith-Jones", "o-brien-smith-jones"},
		{"Dr. Eve!!", "  ", "dr-eve"},
		{"???", "...", "employee"},
		{"Zoë", "Ng\tOK", "zoë-ng-ok"},
	}
	for _, tc := range cases {
		got := Slug(tc.first, tc.last)
		if got != tc.want {
			t.Fatalf("Slug(%q, %q) = %q, want %q", tc.first, tc.last, got, tc.want)
		}
		if strings.ContainsAny(got, "/\\.") {
			t.Fatalf("Slug(%q, %q) = %q is not a single path segment", tc.first, tc.last, got)
		}
	}
}

func TestHasSlugPart(t *testing.T) {
	for name, want := range map[string]bool{
		"Max":     true,
		"..":      false,
		"/":       false,
		"  - ":    false,
		"x.":      true,
		"René":    true,
		"\u00a0": false,
	} {
		if got := HasSlugPart(name); got != want {
			t.Fatalf("HasSlugPart(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDisambiguatedSlug(t *testing.T) {
	if got := DisambiguatedSlug("max-muster", "01HZX3ABCDEF"); got != "max-muster-abcdef" {
		t.Fatalf("unexpected slug %q", got)
	}
	if got := DisambiguatedSlug("max-muster", "u1"); got != "max-muster-u1" {
		t.Fatalf("unexpected slug for short uid %q", got)
	}
	if got := DisambiguatedSlug("max-muster", "../x/.."); got != "max-muster-x" {
		t.Fatalf("unexpected slug for unsafe uid %q", got)
	}
}

func TestProfilePatch(t *testing.T) {
	var p ProfilePatch
	if !p.Empty() {
		t.Fatal("zero patch must be empty")
	}
	phone := "+49 1"
	p.Phone = &phone
	got := p.Apply(Profile{FirstName: "Max", Phone: "old"})
	if got.Phone != phone || got.FirstName != "Max" {
		t.Fatalf("unexpected apply result: %+v", got)
	}
}

func TestInMemoryLifecycleTimestamps(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewInMemory().WithClock(func() time.Time { return clock })

	rec, err := s.Create(ctx, Record{ID: "e1", Profile: Profile{FirstName: "Max", LastName: "Muster"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Status != StatusPending || rec.Approved || rec.ApprovedAt != nil || rec.Role != RoleEmployee {
		t.Fatalf("unexpected new record: %+v", rec)
	}
	if _, err := s.Create(ctx, Record{ID: "e1"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	clock = clock.Add(time.Hour)
	approved := StatusApproved
	rec, err = s.Update(ctx, "e1", Update{Status: &approved})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !rec.Approved || rec.ApprovedAt == nil || !rec.ApprovedAt.Equal(clock) || !rec.UpdatedAt.Equal(clock) {
		t.Fatalf("approval timestamps not stamped: %+v", rec)
	}

	disabled := StatusDisabled
	rec, err = s.Update(ctx, "e1", Update{Status: &disabled})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if rec.Approved {
		t.Fatalf("approved flag must follow status")
	}

	bogus := Status("archived")
	if _, err := s.Update(ctx, "e1", Update{Status: &bogus}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := s.Update(ctx, "nope", Update{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryListByRole(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	_, _ = s.Create(ctx, Record{ID: "b", Role: RoleAdmin})
	_, _ = s.Create(ctx, Record{ID: "a", Role: RoleAdmin})
	_, _ = s.Create(ctx, Record{ID: "c"})

	admins, err := s.ListByRole(ctx, RoleAdmin)
	if err != nil {
		t.Fatalf("ListByRole: %v", err)
	}
	if len(admins) != 2 || admins[0].ID != "a" || admins[1].ID != "b" {
		t.Fatalf("unexpected admins: %+v", admins)
	}
}
