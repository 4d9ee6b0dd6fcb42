package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                               "/",
		"/metrics":                       "/metrics",
		"/v1/employees":                  "/v1/employees",
		"/v1/employees/abc":              "/v1/employees/:id",
		"/v1/employees/abc/approve":      "/v1/employees/:id/approve",
		"/v1/employees/abc/resync":       "/v1/employees/:id/resync",
		"/v1/employees/abc/extra":        "/v1/employees/abc/extra",
		"/v1/employees/abc?verbose=true": "/v1/employees/:id",
		"/v1/auth/token":                 "/v1/auth/token",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
