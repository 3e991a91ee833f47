// Package diff compares two templates path by path.
package diff

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Jeffail/gabs/v2"

	"github.com/BDNK1/schedstack/internal/template"
)

// ChangeKind describes how a path differs
type ChangeKind string

const (
	Added   ChangeKind = "+"
	Removed ChangeKind = "-"
	Changed ChangeKind = "~"
)

// Change is one differing leaf path
type Change struct {
	Kind ChangeKind
	Path string
	Old  any
	New  any
}

func (c Change) String() string {
	switch c.Kind {
	case Added:
		return fmt.Sprintf("%s %s = %s", c.Kind, c.Path, render(c.New))
	case Removed:
		return fmt.Sprintf("%s %s = %s", c.Kind, c.Path, render(c.Old))
	default:
		return fmt.Sprintf("%s %s: %s -> %s", c.Kind, c.Path, render(c.Old), render(c.New))
	}
}

// Templates returns the changes turning from into to, sorted by path.
// Numbers are compared by value, so a parsed template equals the in-memory one.
func Templates(from, to *template.Template) ([]Change, error) {
	before, err := flatten(from.Doc())
	if err != nil {
		return nil, fmt.Errorf("failed to flatten old template: %w", err)
	}
	after, err := flatten(to.Doc())
	if err != nil {
		return nil, fmt.Errorf("failed to flatten new template: %w", err)
	}

	paths := make(map[string]struct{}, len(before)+len(after))
	for p := range before {
		paths[p] = struct{}{}
	}
	for p := range after {
		paths[p] = struct{}{}
	}

	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var changes []Change
	for _, p := range sorted {
		o, inOld := before[p]
		n, inNew := after[p]
		switch {
		case !inOld:
			changes = append(changes, Change{Kind: Added, Path: p, New: n})
		case !inNew:
			changes = append(changes, Change{Kind: Removed, Path: p, Old: o})
		case render(o) != render(n):
			changes = append(changes, Change{Kind: Changed, Path: p, Old: o, New: n})
		}
	}
	return changes, nil
}

// flatten normalizes through JSON so ints and float64s compare equal
func flatten(doc *gabs.Container) (map[string]any, error) {
	normalized, err := gabs.ParseJSON(doc.Bytes())
	if err != nil {
		return nil, err
	}
	return normalized.FlattenIncludeEmpty()
}

// Summary renders changes one per line.
func Summary(changes []Change) string {
	if len(changes) == 0 {
		return "no differences\n"
	}
	var sb strings.Builder
	for _, c := range changes {
		sb.WriteString(c.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func render(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
