package lifecycle

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"crewhub.dev/internal/auth"
	"crewhub.dev/internal/deploy"
	"crewhub.dev/internal/employee"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var maxLen = map[string]int{
	"first_name": 100,
	"last_name":  100,
	"email":      254,
	"phone":      40,
	"position":   120,
	"bio":        2000,
	"avatar_ref": 2048,
}

func checkLen(field, v string) error {
	if n := maxLen[field]; n > 0 && utf8.RuneCountInString(v) > n {
		return invalid(field, fmt.Sprintf("must be at most %d characters", n))
	}
	return nil
}

func cleanProfile(p employee.Profile) employee.Profile {
	return employee.Profile{
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		Email:     auth.NormalizeEmail(p.Email),
		Phone:     strings.TrimSpace(p.Phone),
		Position:  strings.TrimSpace(p.Position),
		Bio:       strings.TrimSpace(p.Bio),
		AvatarRef: strings.TrimSpace(p.AvatarRef),
	}
}

// checkName rejects names that leave nothing for the public slug.
func checkName(field, v string) error {
	if !employee.HasSlugPart(v) {
		return invalid(field, "must contain a letter or digit")
	}
	return nil
}

func checkAvatar(policy deploy.AvatarPolicy, ref string) error {
	if ref == "" {
		return nil
	}
	if err := policy.Check(ref); err != nil {
		return invalid("avatar_ref", "must be an image URL on an allowed host")
	}
	return nil
}

func validateRegistration(p employee.Profile, password string, avatars deploy.AvatarPolicy) error {
	required := []struct{ field, value string }{
		{"first_name", p.FirstName},
		{"last_name", p.LastName},
		{"email", p.Email},
		{"password", password},
	}
	for _, r := range required {
		if r.value == "" {
			return invalid(r.field, "is required")
		}
	}
	if !emailPattern.MatchString(p.Email) {
		return invalid("email", "is not a valid address")
	}
	if err := auth.CheckStrength(password); err != nil {
		return invalid("password", err.Error())
	}
	fields := []struct{ field, value string }{
		{"first_name", p.FirstName},
		{"last_name", p.LastName},
		{"email", p.Email},
		{"phone", p.Phone},
		{"position", p.Position},
		{"bio", p.Bio},
		{"avatar_ref", p.AvatarRef},
	}
	for _, f := range fields {
		if err := checkLen(f.field, f.value); err != nil {
			return err
		}
	}
	if err := checkName("first_name", p.FirstName); err != nil {
		return err
	}
	if err := checkName("last_name", p.LastName); err != nil {
		return err
	}
	return checkAvatar(avatars, p.AvatarRef)
}

// cleanPatch trims every set field, rejects blank or slug-less names and
// avatar references outside the policy.
func cleanPatch(p employee.ProfilePatch, avatars deploy.AvatarPolicy) (employee.ProfilePatch, error) {
	var out employee.ProfilePatch
	fields := []struct {
		name     string
		in       *string
		out      **string
		nonEmpty bool
	}{
		{"first_name", p.FirstName, &out.FirstName, true},
		{"last_name", p.LastName, &out.LastName, true},
		{"phone", p.Phone, &out.Phone, false},
		{"position", p.Position, &out.Position, false},
		{"bio", p.Bio, &out.Bio, false},
		{"avatar_ref", p.AvatarRef, &out.AvatarRef, false},
	}
	for _, f := range fields {
		if f.in == nil {
			continue
		}
		v := strings.TrimSpace(*f.in)
		if f.nonEmpty && v == "" {
			return employee.ProfilePatch{}, invalid(f.name, "must not be empty")
		}
		if err := checkLen(f.name, v); err != nil {
			return employee.ProfilePatch{}, err
		}
		if f.nonEmpty {
			if err := checkName(f.name, v); err != nil {
				return employee.ProfilePatch{}, err
			}
		}
		*f.out = &v
	}
	if out.AvatarRef != nil {
		if err := checkAvatar(avatars, *out.AvatarRef); err != nil {
			return employee.ProfilePatch{}, err
		}
	}
	return out, nil
}
