package deploy

import (
	"bytes"
	"encoding/json"

	"crewhub.dev/internal/employee"
	"crewhub.dev/internal/schema"
)

// Entry is the public manifest view of one approved employee.
type Entry struct {
	Slug            string `json:"slug"`
	UID             string `json:"uid"`
	Name            string `json:"name"`
	Title           string `json:"title"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	AvatarExtension string `json:"avatarExtension"`
}

func entryFor(rec employee.Record, slug string) Entry {
	return Entry{
		Slug:  slug,
		UID:   rec.ID,
		Name:  rec.DisplayName(),
		Title: rec.Position,
		Phone: rec.Phone,
		Email: rec.Email,
	}
}

// decodeManifest returns nil entries and a non-nil error for anything that is
// not a valid manifest. Callers treat that as an empty manifest.
func decodeManifest(raw []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	if err := schema.Validate(schema.Manifest, raw); err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func encodeManifest(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// resolveSlug returns base unless a different employee already holds it. An
// employee already published under its disambiguated form keeps that form.
func resolveSlug(entries []Entry, base, uid string) string {
	disambiguated := employee.DisambiguatedSlug(base, uid)
	for _, e := range entries {
		if e.UID == uid && e.Slug == disambiguated {
			return disambiguated
		}
	}
	for _, e := range entries {
		if e.Slug == base && e.UID != "" && e.UID != uid {
			return disambiguated
		}
	}
	return base
}

// locate finds the entry owned by uid, falling back to an unowned entry under slug.
func locate(entries []Entry, uid, slug string) int {
	for i, e := range entries {
		if e.UID == uid {
			return i
		}
	}
	for i, e := range entries {
		if e.Slug == slug && (e.UID == "" || e.UID == uid) {
			return i
		}
	}
	return -1
}

// upsert replaces the entry at idx (or appends) and drops any other entry
// carrying the same uid or slug.
func upsert(entries []Entry, idx int, next Entry) []Entry {
	out := make([]Entry, 0, len(entries)+1)
	placed := false
	for i, e := range entries {
		switch {
		case i == idx:
			out = append(out, next)
			placed = true
		case e.UID == next.UID || e.Slug == next.Slug:
			// duplicate from an earlier lost update
		default:
			out = append(out, e)
		}
	}
	if !placed {
		out = append(out, next)
	}
	return out
}

// without drops every entry owned by uid, plus an unowned entry under slug.
func without(entries []Entry, uid, slug string) (kept, removed []Entry) {
	for _, e := range entries {
		if e.UID == uid || (e.UID == "" && e.Slug == slug) {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	return kept, removed
}

func sameEntries(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
