// Package dedup detects duplicate candidate items using title slugs and
// keyword overlap. It gates admission twice: newly discovered items are
// checked against everything already queued or built, and items within one
// discovery batch are checked against each other so near-duplicate siblings
// from a single cycle are rejected too.
package dedup

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// DefaultSimilarityThreshold is the Jaccard keyword-overlap score at or
	// above which two titles are considered duplicates. Empirically chosen;
	// kept as configuration rather than a derivation.
	DefaultSimilarityThreshold = 0.6

	// DefaultMinContainmentLen is the minimum slug length for the
	// containment rule, guarding against short prefixes matching everything.
	DefaultMinContainmentLen = 5
)

// stopWords are dropped from keyword sets before comparing titles
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "for": {}, "of": {},
	"to": {}, "in": {}, "on": {}, "with": {}, "your": {}, "my": {}, "app": {},
	"simple": {}, "basic": {}, "online": {}, "web": {}, "tool": {},
}

// Config holds similarity thresholds
type Config struct {
	SimilarityThreshold float64 // Jaccard score considered a duplicate
	MinContainmentLen   int     // Minimum shorter-slug length for containment matches
}

// DefaultConfig returns the default thresholds
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: DefaultSimilarityThreshold,
		MinContainmentLen:   DefaultMinContainmentLen,
	}
}

// Record is the derived comparison view of an item: slug, keyword set and
// origin bucket. It is a projection computed on demand, never persisted.
type Record struct {
	ID     string
	Title  string
	Bucket string // Origin of the record (e.g. "queued", "built")

	slug     string
	keywords map[string]struct{}
}

// NewRecord computes the comparison projection for one title
func NewRecord(id, title, bucket string) Record {
	return Record{
		ID:       id,
		Title:    title,
		Bucket:   bucket,
		slug:     Slugify(title),
		keywords: Keywords(title),
	}
}

// Slug returns the normalized slug of the record's title
func (r Record) Slug() string {
	return r.slug
}

// Decision is the result of a duplicate check
type Decision struct {
	Duplicate bool
	Reason    string // "exact slug match", "slug containment", or "title similarity"
	MatchedID string // ID of the existing record that matched
}

// Index performs duplicate checks with configured thresholds
type Index struct {
	cfg Config
}

// New creates a similarity index. Zero config fields select defaults.
func New(cfg Config) *Index {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.MinContainmentLen <= 0 {
		cfg.MinContainmentLen = DefaultMinContainmentLen
	}
	return &Index{cfg: cfg}
}

// Check compares a candidate against a set of existing records.
// Rules are applied in order; the first match wins:
//  1. exact slug equality
//  2. slug containment in either direction (shorter slug must be at least
//     MinContainmentLen long)
//  3. keyword Jaccard similarity at or above the threshold
func (ix *Index) Check(candidate Record, existing []Record) Decision {
	for _, rec := range existing {
		if candidate.slug != "" && candidate.slug == rec.slug {
			return Decision{Duplicate: true, Reason: "exact slug match", MatchedID: rec.ID}
		}
	}

	for _, rec := range existing {
		shorter, longer := candidate.slug, rec.slug
		if len(shorter) > len(longer) {
			shorter, longer = longer, shorter
		}
		if len(shorter) >= ix.cfg.MinContainmentLen && strings.Contains(longer, shorter) {
			return Decision{Duplicate: true, Reason: "slug containment", MatchedID: rec.ID}
		}
	}

	for _, rec := range existing {
		if Jaccard(candidate.keywords, rec.keywords) >= ix.cfg.SimilarityThreshold {
			return Decision{Duplicate: true, Reason: "title similarity", MatchedID: rec.ID}
		}
	}

	return Decision{}
}

// FilterBatch splits a batch of candidates into unique records and rejected
// duplicates. Candidates are processed in their given order and each is
// compared against both the existing set and the running set of candidates
// already accepted from this same batch, so a later sibling of an accepted
// item is still rejected even though that sibling has not been persisted.
func (ix *Index) FilterBatch(candidates, existing []Record) (unique []Record, rejected []Rejection) {
	accepted := make([]Record, 0, len(candidates))
	for _, cand := range candidates {
		decision := ix.Check(cand, existing)
		if !decision.Duplicate {
			decision = ix.Check(cand, accepted)
		}
		if decision.Duplicate {
			rejected = append(rejected, Rejection{Record: cand, Decision: decision})
			continue
		}
		accepted = append(accepted, cand)
	}
	return accepted, rejected
}

// Rejection pairs a rejected candidate with the decision that rejected it
type Rejection struct {
	Record   Record
	Decision Decision
}

// String summarizes a rejection for log output
func (r Rejection) String() string {
	return fmt.Sprintf("%q rejected: %s (matches %s)", r.Record.Title, r.Decision.Reason, r.Decision.MatchedID)
}

// Slugify normalizes a title to a slug: lowercase, runs of non-alphanumeric
// characters collapsed to a single separator, leading/trailing separators
// trimmed.
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true // Suppress a leading separator
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastDash = false
		} else if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Keywords extracts the comparison keyword set from a title: lowercase,
// punctuation stripped, whitespace-split, stop words and single-character
// tokens dropped.
func Keywords(title string) map[string]struct{} {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, strings.ToLower(title))

	set := make(map[string]struct{})
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) < 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// Jaccard computes intersection-over-union of two keyword sets. Two empty
// sets are defined as identical (similarity 1), not 0/0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1
	}
	return float64(intersection) / float64(union)
}
