// Package schema validates request bodies and the published manifest against
// embedded JSON schemas.
package schema

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schemas/*.schema.json
var files embed.FS

// Name identifies an embedded schema.
type Name string

const (
	Register Name = "register"
	Profile  Name = "profile"
	Manifest Name = "manifest"
)

var (
	compileOnce sync.Once
	compiled    map[Name]*jsonschema.Schema
	compileErr  error
	printer     = message.NewPrinter(language.English)
)

// ErrInvalid is matched by every *ValidationError.
var ErrInvalid = errors.New("schema: invalid document")

// Issue is one failed constraint.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError lists the constraints a document violated.
type ValidationError struct {
	Schema Name
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Path == "" {
			parts = append(parts, is.Message)
			continue
		}
		parts = append(parts, is.Path+": "+is.Message)
	}
	return fmt.Sprintf("schema: invalid %s: %s", e.Schema, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

func load() (map[Name]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		names := []Name{Register, Profile, Manifest}
		for _, n := range names {
			raw, err := files.ReadFile("schemas/" + string(n) + ".schema.json")
			if err != nil {
				compileErr = err
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
			if err != nil {
				compileErr = fmt.Errorf("schema %s: %w", n, err)
				return
			}
			if err := c.AddResource(string(n)+".schema.json", doc); err != nil {
				compileErr = fmt.Errorf("schema %s: %w", n, err)
				return
			}
		}
		out := make(map[Name]*jsonschema.Schema, len(names))
		for _, n := range names {
			s, err := c.Compile(string(n) + ".schema.json")
			if err != nil {
				compileErr = fmt.Errorf("compile %s: %w", n, err)
				return
			}
			out[n] = s
		}
		compiled = out
	})
	return compiled, compileErr
}

// Validate checks a JSON document. It returns *ValidationError for documents
// that parse but violate the schema, and a plain error for malformed JSON.
func Validate(name Name, data []byte) error {
	all, err := load()
	if err != nil {
		return err
	}
	s, ok := all[name]
	if !ok {
		return fmt.Errorf("schema: unknown schema %q", name)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("schema: malformed json: %w", err)
	}
	err = s.Validate(inst)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	return &ValidationError{Schema: name, Issues: issues(ve)}
}

func issues(ve *jsonschema.ValidationError) []Issue {
	var out []Issue
	collect(ve, &out)
	if len(out) == 0 {
		return []Issue{{Message: ve.Error()}}
	}
	seen := make(map[string]bool, len(out))
	uniq := out[:0]
	for _, is := range out {
		k := is.Path + "|" + is.Message
		if seen[k] {
			continue
		}
		seen[k] = true
		uniq = append(uniq, is)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].Path < uniq[j].Path })
	return uniq
}

func collect(ve *jsonschema.ValidationError, out *[]Issue) {
	if len(ve.Causes) == 0 {
		if ve.ErrorKind == nil {
			return
		}
		path := ""
		if len(ve.InstanceLocation) > 0 {
			path = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*out = append(*out, Issue{Path: path, Message: ve.ErrorKind.LocalizedString(printer)})
		return
	}
	for _, c := range ve.Causes {
		collect(c, out)
	}
}
