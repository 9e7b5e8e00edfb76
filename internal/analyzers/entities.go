package analyzers

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.EntityExtractor = (*EntityExtractor)(nil)

// Entity types reported by the local extractor.
const (
	EntityEmail        = "EMAIL"
	EntityURL          = "URL"
	EntityDate         = "DATE"
	EntityQuantity     = "QUANTITY"
	EntityPerson       = "PERSON"
	EntityOrganization = "ORGANIZATION"
	EntityOther        = "OTHER"
)

// patternDetector tags every match of a regular expression with one type.
type patternDetector struct {
	entityType string
	pattern    *regexp.Regexp
	confidence float64
}

// Detectors run in order; earlier matches claim their span.
var patternDetectors = []patternDetector{
	{EntityEmail, regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), 0.99},
	{EntityURL, regexp.MustCompile(`https?://[^\s<>"')\]]+`), 0.99},
	{EntityDate, regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b|\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.? \d{1,2}(?:st|nd|rd|th)?(?:, \d{4})?\b`), 0.9},
	{EntityQuantity, regexp.MustCompile(`[$€£¥]\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:million|billion|thousand|[kKmMbB]))?|\b\d[\d,]*(?:\.\d+)?\s?(?:%|percent|kg|km|mb|gb|tb|hours|days|years|units)\b`), 0.85},
}

// capitalisedPattern matches two or more consecutive capitalised words.
var capitalisedPattern = regexp.MustCompile(`\b\p{Lu}[\p{L}&'\-]*\.?(?:\s+(?:of\s+|de\s+|van\s+)?\p{Lu}[\p{L}&'\-]*\.?)+`)

var organizationSuffixes = map[string]bool{
	"inc": true, "inc.": true, "corp": true, "corp.": true, "corporation": true, "ltd": true,
	"ltd.": true, "llc": true, "gmbh": true, "company": true, "co.": true, "group": true,
	"university": true, "bank": true, "foundation": true, "institute": true, "labs": true,
}

var personTitles = map[string]bool{
	"mr": true, "mr.": true, "mrs": true, "mrs.": true, "ms": true, "ms.": true,
	"dr": true, "dr.": true, "prof": true, "prof.": true,
}

// EntityExtractor finds entities with regular expressions and
// capitalised-sequence heuristics.
type EntityExtractor struct{}

// NewEntityExtractor creates a heuristic entity extractor.
func NewEntityExtractor() *EntityExtractor {
	return &EntityExtractor{}
}

type span struct{ start, end int }

type found struct {
	entity domain.Entity
	pos    int
	count  int
}

// ExtractEntities returns unique entities in order of first appearance.
// Repeated mentions raise confidence slightly.
func (e *EntityExtractor) ExtractEntities(ctx context.Context, text, _ string) ([]domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var claimed []span
	byKey := make(map[string]*found)

	add := func(entityText, entityType string, confidence float64, pos int) {
		key := entityType + "\x00" + strings.ToLower(entityText)
		if f, ok := byKey[key]; ok {
			f.count++
			return
		}
		byKey[key] = &found{
			entity: domain.Entity{Text: entityText, Type: entityType, Confidence: confidence},
			pos:    pos,
			count:  1,
		}
	}

	for _, d := range patternDetectors {
		for _, loc := range d.pattern.FindAllStringIndex(text, -1) {
			s := span{loc[0], loc[1]}
			if overlaps(claimed, s) {
				continue
			}
			match := strings.TrimRight(text[s.start:s.end], ".,;:")
			claimed = append(claimed, s)
			add(match, d.entityType, d.confidence, s.start)
		}
	}

	for _, loc := range capitalisedPattern.FindAllStringIndex(text, -1) {
		s := span{loc[0], loc[1]}
		if overlaps(claimed, s) {
			continue
		}
		entityText, entityType, confidence := classifyCapitalised(text[s.start:s.end])
		if entityType == "" {
			continue
		}
		add(entityText, entityType, confidence, s.start)
	}

	list := make([]*found, 0, len(byKey))
	for _, f := range byKey {
		list = append(list, f)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].pos < list[j].pos })

	entities := make([]domain.Entity, 0, len(list))
	for _, f := range list {
		ent := f.entity
		ent.Confidence = min(0.99, ent.Confidence+0.02*float64(f.count-1))
		entities = append(entities, ent)
	}
	return entities, nil
}

// classifyCapitalised types a capitalised sequence by its first and last words.
// Leading stop words ("The", "In") are dropped; fewer than two remaining
// words is not an entity.
func classifyCapitalised(match string) (string, string, float64) {
	words := strings.Fields(match)
	for len(words) > 0 {
		if _, ok := stopwords["en"][strings.ToLower(words[0])]; !ok {
			break
		}
		words = words[1:]
	}
	if len(words) < 2 {
		return "", "", 0
	}
	first := strings.ToLower(words[0])
	last := strings.ToLower(words[len(words)-1])
	text := strings.TrimRight(strings.Join(words, " "), ".")

	switch {
	case personTitles[first]:
		return text, EntityPerson, 0.8
	case organizationSuffixes[last]:
		return text, EntityOrganization, 0.8
	default:
		return text, EntityOther, 0.6
	}
}

func overlaps(spans []span, s span) bool {
	for _, c := range spans {
		if s.start < c.end && c.start < s.end {
			return true
		}
	}
	return false
}
