// Package slug derives URL-safe identifiers from snippet titles.
//
// TWO HALVES:
//   - Make normalizes a title into a lowercase, hyphen-delimited ASCII token
//     sequence ("Hello, World!" -> "hello-world").
//   - Generator makes a slug unique by probing the store and appending a
//     numeric suffix: hello-world, hello-world-1, hello-world-2, ...
//
// The probe and the later insert are two separate statements, so two
// concurrent creates with the same title can both see "hello-world" as free.
// The store's UNIQUE index on slug is the real guarantee; the generator only
// makes collisions rare. Callers retry on apperror.ErrDuplicateKey.
package slug

import (
	"context"
	"fmt"
	"strings"

	gosimpleslug "github.com/gosimple/slug"
)

// Fallback is used when a title contains nothing that survives normalization
// (e.g. a title made only of punctuation).
const Fallback = "snippet"

// Make returns the strict slug for title.
//
// gosimple/slug transliterates non-ASCII letters ("café" -> "cafe"), spells
// out a few symbols ("&" -> "and") and drops everything else outside
// [a-z0-9-]. Runs of separators collapse into a single hyphen. Underscores
// are treated as separators since gosimple/slug would otherwise keep them.
func Make(title string) string {
	title = strings.ReplaceAll(strings.TrimSpace(title), "_", " ")
	s := gosimpleslug.MakeLang(title, "en")
	if s == "" {
		return Fallback
	}
	return s
}

// Prober reports whether a slug is already taken.
// The sqlite repository implements it with a single indexed lookup.
type Prober interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// Generator assigns unique slugs.
type Generator struct {
	prober Prober
}

// NewGenerator creates a Generator that probes the given store.
func NewGenerator(prober Prober) *Generator {
	return &Generator{prober: prober}
}

// Generate returns the first unused slug for title: the bare slug if free,
// otherwise the bare slug with the smallest free suffix starting at 1.
func (g *Generator) Generate(ctx context.Context, title string) (string, error) {
	base := Make(title)

	candidate := base
	for suffix := 1; ; suffix++ {
		taken, err := g.prober.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("slug: probing %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, suffix)
	}
}
