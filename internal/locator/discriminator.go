package locator

import (
	"fmt"
	"strings"
)

type Kind string

const (
	// Positional picks the nth table in document order (0-based).
	Positional Kind = "positional"
	// HeaderContains picks the first table whose header row contains a substring.
	HeaderContains Kind = "header_contains"
	// CSSClass picks the first table carrying a class.
	CSSClass Kind = "css_class"
	// JSONPath picks the object (or array of objects) at a dot separated path.
	JSONPath Kind = "json_path"
)

// Discriminator is the declarative rule used to find the dataset inside an
// untrusted document. Only the field matching Kind is read.
type Discriminator struct {
	Kind      Kind   `json:"kind" validate:"required,oneof=positional header_contains css_class json_path"`
	Index     int    `json:"index" validate:"gte=0"`
	Substring string `json:"substring"`
	Class     string `json:"class"`
	Path      string `json:"path"`
}

func AtIndex(n int) Discriminator {
	return Discriminator{Kind: Positional, Index: n}
}

func WithHeader(substring string) Discriminator {
	return Discriminator{Kind: HeaderContains, Substring: substring}
}

func WithClass(class string) Discriminator {
	return Discriminator{Kind: CSSClass, Class: class}
}

func AtPath(path string) Discriminator {
	return Discriminator{Kind: JSONPath, Path: path}
}

// Validate checks that the field Kind needs is set.
func (d Discriminator) Validate() error {
	switch d.Kind {
	case Positional:
		if d.Index < 0 {
			return fmt.Errorf("discriminator: negative index %d", d.Index)
		}
	case HeaderContains:
		if strings.TrimSpace(d.Substring) == "" {
			return fmt.Errorf("discriminator: header_contains requires a substring")
		}
	case CSSClass:
		if strings.TrimSpace(d.Class) == "" || strings.ContainsAny(d.Class, " .#[]>") {
			return fmt.Errorf("discriminator: css_class requires a single class name, got %q", d.Class)
		}
	case JSONPath:
		if strings.TrimSpace(d.Path) == "" {
			return fmt.Errorf("discriminator: json_path requires a path")
		}
	default:
		return fmt.Errorf("discriminator: unknown kind %q", d.Kind)
	}
	return nil
}

// IsJSON reports if the discriminator reads a JSON body instead of HTML.
func (d Discriminator) IsJSON() bool {
	return d.Kind == JSONPath
}

func (d Discriminator) String() string {
	switch d.Kind {
	case Positional:
		return fmt.Sprintf("table #%d", d.Index)
	case HeaderContains:
		return fmt.Sprintf("table with header %q", d.Substring)
	case CSSClass:
		return fmt.Sprintf("table.%s", d.Class)
	case JSONPath:
		return fmt.Sprintf("json path %q", d.Path)
	}
	return string(d.Kind)
}
