// Package search holds the search-engine adapter contract and the index
// normalizer that folds time-rotated index names into families.
package search

import (
	"context"
	"regexp"
	"slices"
	"strings"
)

// rotationSuffix matches one rotation suffix: an epoch-millisecond stamp, a
// year with one or two -MM[-DD] groups, a 4-8 digit number or a 1-3 digit
// number, each introduced by "-" or "_".
const rotationSuffix = `([-_]\d{13})|([-_]\d{4}([-_]\d{2}){1,2})|([-_]\d{4,8})|([-_]\d{1,3})`

var (
	suffixRe  = regexp.MustCompile(rotationSuffix)
	rotatedRe = regexp.MustCompile(`^(?:[-\w]+([-_]\d{13})|[-\w]+([-_]\d{4}([-_]\d{2}){1,2})|[-\w]+([-_]\d{4,8})|[-\w]+([-_]\d{1,3}))$`)
)

// IndexSummary describes one raw index and the family it belongs to.
type IndexSummary struct {
	IndexName      string `json:"indexName" yaml:"indexName"`
	CleanIndexName string `json:"cleanIndexName" yaml:"cleanIndexName"`
	TotalIndex     int    `json:"totalIndex" yaml:"totalIndex"`
	IsIndexPattern bool   `json:"isIndexPattern" yaml:"isIndexPattern"`
}

// Engine is implemented by every search-engine adapter.
type Engine interface {
	ListIndexPatterns(ctx context.Context, namespace string) ([]IndexSummary, error)
	Close() error
}

// IsRotated reports whether name is a prefix followed by a rotation suffix.
func IsRotated(name string) bool {
	return rotatedRe.MatchString(name)
}

// CleanName returns the family name of a rotated index (every rotation
// suffix removed, "-*" appended), or name itself when it is not rotated.
func CleanName(name string) string {
	if !IsRotated(name) {
		return name
	}
	return suffixRe.ReplaceAllString(name, "") + "-*"
}

// NormalizeIndices sorts names and emits one summary per name, skipping
// internal indices (names containing "." or "{"). TotalIndex is the running
// count of names seen so far in the same family.
func NormalizeIndices(names []string) []IndexSummary {
	sorted := slices.Clone(names)
	slices.Sort(sorted)

	counts := make(map[string]int)
	out := make([]IndexSummary, 0, len(sorted))
	for _, name := range sorted {
		if strings.ContainsAny(name, ".{") {
			continue
		}
		rotated := IsRotated(name)
		clean := name
		if rotated {
			clean = suffixRe.ReplaceAllString(name, "") + "-*"
		}
		counts[clean]++
		out = append(out, IndexSummary{
			IndexName:      name,
			CleanIndexName: clean,
			TotalIndex:     counts[clean],
			IsIndexPattern: rotated,
		})
	}
	return out
}
