package classifier

import (
	"context"
	"sort"
)

// Result explains one classification decision.
type Result struct {
	PersonaID       int64    `json:"persona_id"`
	PersonaName     string   `json:"persona_name"`
	MatchedKeywords []string `json:"matched_keywords"`
	PriorityUsed    int      `json:"priority_used"`
	NormalizedTitle string   `json:"normalized_title"`
	IsDefault       bool     `json:"is_default"`
}

// Classifier assigns buyer personas from free-text job titles. Matching
// is exact: the normalized title must equal a registered keyword string
// as a whole; substring containment never matches. "director" does not
// match a persona whose only keyword is "director de marketing".
type Classifier struct {
	cache *Cache
}

// New creates a Classifier over the given cache.
func New(cache *Cache) *Classifier {
	return &Classifier{cache: cache}
}

// Classify resolves a job title to a persona with a full explanation.
// Personas are walked in ascending priority order and the first whose
// keyword set contains the normalized title wins; when none match, the
// default persona is returned with no matched keywords.
func (c *Classifier) Classify(ctx context.Context, jobTitle string) (*Result, error) {
	normalized := Normalize(jobTitle)
	if normalized == "" {
		return c.defaultResult(ctx, normalized)
	}

	catalog, err := c.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range catalog.Personas {
		if raw, ok := p.Keywords[normalized]; ok {
			matched := append([]string(nil), raw...)
			sort.Strings(matched)
			return &Result{
				PersonaID:       p.ID,
				PersonaName:     p.Name,
				MatchedKeywords: matched,
				PriorityUsed:    p.Priority,
				NormalizedTitle: normalized,
				IsDefault:       p.IsDefault,
			}, nil
		}
	}

	return c.defaultResult(ctx, normalized)
}

// PersonaID is the simplified variant for hot paths that only need the
// assignment, not the explanation.
func (c *Classifier) PersonaID(ctx context.Context, jobTitle string) (int64, error) {
	res, err := c.Classify(ctx, jobTitle)
	if err != nil {
		return 0, err
	}
	return res.PersonaID, nil
}

func (c *Classifier) defaultResult(ctx context.Context, normalized string) (*Result, error) {
	catalog, err := c.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{
		PersonaID:       catalog.Default.ID,
		PersonaName:     catalog.Default.Name,
		MatchedKeywords: []string{},
		PriorityUsed:    catalog.Default.Priority,
		NormalizedTitle: normalized,
		IsDefault:       true,
	}, nil
}
