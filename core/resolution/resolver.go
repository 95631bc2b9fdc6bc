package resolution

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rheinberg/docflow/helper"
	"github.com/rheinberg/docflow/model"
)

// Mention is the input unit for resolution: one extracted surface form
// with its type tag.
type Mention struct {
	ID   uuid.UUID
	Text string
	Type string
}

// Canonical is one resolved entity with the surface forms it absorbed
type Canonical struct {
	ID         uuid.UUID
	Name       string
	EntityType string
	Aliases    []string
	MentionIDs []uuid.UUID
	Confidence float64
	Method     string
}

// Result carries the canonical entities and the mention assignment of
// one resolution pass
type Result struct {
	Canonicals         []*Canonical
	MentionToCanonical map[uuid.UUID]uuid.UUID
	TotalMentions      int
	TotalCanonical     int
	DeduplicationRate  float64
}

const (
	// groupConfidence is assigned to canonicals built from more than
	// one mention, singletons keep 1.0
	groupConfidence = 0.8
	// exactMethodCutoff separates exact from fuzzy resolution
	exactMethodCutoff = 0.9
)

// Resolver groups mentions of the same type into canonical entities
type Resolver struct {
	config model.ResolveConfig
}

func New(config model.ResolveConfig) *Resolver {
	return &Resolver{config: config}
}

// Resolve partitions the mentions by type and greedily groups each
// type's mentions in input order. A later mention joins a group when
// its similarity to the group opener reaches the threshold or a
// type-specific variation rule fires. One malformed mention fails the
// whole call.
func (r *Resolver) Resolve(mentions []Mention) (*Result, error) {
	if r.config.Threshold <= 0 || r.config.Threshold > 1 {
		return nil, helper.NewError("validating config", fmt.Errorf("threshold %v outside (0, 1]", r.config.Threshold))
	}

	for i, m := range mentions {
		if m.ID == uuid.Nil {
			return nil, helper.NewError("validating mentions", fmt.Errorf("mention %v has no id", i))
		}
		if m.Text == "" {
			return nil, helper.NewError("validating mentions", fmt.Errorf("mention %v (%v) has no text", i, m.ID))
		}
		if m.Type == "" {
			return nil, helper.NewError("validating mentions", fmt.Errorf("mention %v (%v) has no type", i, m.ID))
		}
	}

	result := &Result{
		MentionToCanonical: map[uuid.UUID]uuid.UUID{},
		TotalMentions:      len(mentions),
	}

	grouped := make([]bool, len(mentions))
	for i := range mentions {
		if grouped[i] {
			continue
		}
		group := []int{i}
		grouped[i] = true

		for j := i + 1; j < len(mentions); j++ {
			if grouped[j] || mentions[j].Type != mentions[i].Type {
				continue
			}
			if r.sameEntity(mentions[i], mentions[j]) {
				group = append(group, j)
				grouped[j] = true
			}
		}

		canonical := buildCanonical(mentions, group)
		result.Canonicals = append(result.Canonicals, canonical)
		for _, id := range canonical.MentionIDs {
			result.MentionToCanonical[id] = canonical.ID
		}
	}

	result.TotalCanonical = len(result.Canonicals)
	if result.TotalMentions > 0 {
		result.DeduplicationRate = 1 - float64(result.TotalCanonical)/float64(result.TotalMentions)
	}

	return result, nil
}

// sameEntity reports whether candidate belongs to opener's group
func (r *Resolver) sameEntity(opener Mention, candidate Mention) bool {
	if similarityRatio(opener.Text, candidate.Text) >= r.config.Threshold {
		return true
	}
	return sameVariation(opener.Text, candidate.Text, opener.Type)
}

// buildCanonical turns one group of mention indices into a canonical
// entity. The longest surface form becomes the name, first seen wins
// on ties, and every distinct surface form becomes an alias.
func buildCanonical(mentions []Mention, group []int) *Canonical {
	canonical := &Canonical{
		ID:         uuid.New(),
		EntityType: mentions[group[0]].Type,
		Confidence: 1.0,
	}
	if len(group) > 1 {
		canonical.Confidence = groupConfidence
	}
	canonical.Method = model.ResolutionMethodExact
	if canonical.Confidence < exactMethodCutoff {
		canonical.Method = model.ResolutionMethodFuzzy
	}

	seen := map[string]bool{}
	for _, idx := range group {
		m := mentions[idx]
		canonical.MentionIDs = append(canonical.MentionIDs, m.ID)
		if len(m.Text) > len(canonical.Name) {
			canonical.Name = m.Text
		}
		if !seen[m.Text] {
			seen[m.Text] = true
			canonical.Aliases = append(canonical.Aliases, m.Text)
		}
	}

	return canonical
}
