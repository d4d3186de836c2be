package filter

import (
	"github.com/mirelo/sdsort/internal/provenance"
	"github.com/mirelo/sdsort/pkg/db/store"
)

// Request is a combined filter/sort/paginate query against the
// catalog. Every criterion is optional; present criteria are combined
// with AND across kinds, while semantics within a kind vary and are
// documented per field.
type Request struct {
	Generators  []string `json:"generators"   query:"generators"`  // OR
	Tags        []string `json:"tags"         query:"tags"`        // AND, substring per tag
	Ratings     []string `json:"ratings"      query:"ratings"`     // OR; untagged always passes
	Checkpoints []string `json:"checkpoints"  query:"checkpoints"` // OR, exact
	Loras       []string `json:"loras"        query:"loras"`       // OR, exact after refinement
	Search      string   `json:"search"       query:"search"`      // substring, prompt or filename
	PromptTerms []string `json:"prompt_terms" query:"prompt_terms"` // AND, exact token membership

	MinWidth  int `json:"min_width"  query:"min_width"`
	MaxWidth  int `json:"max_width"  query:"max_width"`
	MinHeight int `json:"min_height" query:"min_height"`
	MaxHeight int `json:"max_height" query:"max_height"`

	AspectRatio string `json:"aspect_ratio" query:"aspect_ratio"` // square, landscape, portrait

	SortBy string `json:"sort_by" query:"sort_by"`
	Limit  int    `json:"limit"   query:"limit"` // <= 0 means no limit
	Offset int    `json:"offset"  query:"offset"`
}

// needsRefinement reports whether exact in-memory re-checking is
// required. Substring predicates alone would admit false positives for
// prompt terms and lora names ("cat" matching "category").
func (r *Request) needsRefinement() bool {
	return len(r.PromptTerms) > 0 || len(r.Loras) > 0
}

// normalizedTerms returns the prompt terms as comparison keys.
func (r *Request) normalizedTerms() []string {
	terms := make([]string, 0, len(r.PromptTerms))
	for _, term := range r.PromptTerms {
		if key := provenance.NormalizeToken(term); key != "" {
			terms = append(terms, key)
		}
	}
	return terms
}

// normalizedLoras returns the requested lora names as comparison keys.
func (r *Request) normalizedLoras() []string {
	loras := make([]string, 0, len(r.Loras))
	for _, lora := range r.Loras {
		if key := provenance.NormalizeLoraName(lora); key != "" {
			loras = append(loras, key)
		}
	}
	return loras
}

// toStoreQuery translates the request into the coarse relational
// query. Lora names go in normalized, as substrings; the store matches
// them against the stored list, the raw metadata blob and the prompt,
// producing a candidate superset for refinement.
func (r *Request) toStoreQuery() store.ImageQuery {
	return store.ImageQuery{
		Generators:     r.Generators,
		TagsLike:       r.Tags,
		Ratings:        r.Ratings,
		Checkpoints:    r.Checkpoints,
		LoraSubstrings: r.normalizedLoras(),
		Search:         r.Search,
		MinWidth:       r.MinWidth,
		MaxWidth:       r.MaxWidth,
		MinHeight:      r.MinHeight,
		MaxHeight:      r.MaxHeight,
		AspectRatio:    r.AspectRatio,
		SortBy:         r.SortBy,
		Limit:          r.Limit,
		Offset:         r.Offset,
	}
}
