package pch

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/includeguard/includeguard/internal/estimator"
	"github.com/includeguard/includeguard/internal/types"
)

const (
	// MinCost excludes headers too cheap for precompilation to pay off.
	MinCost = types.DefaultPCHCostFloor

	// pchOverheadMultiplier models the fixed cost of loading the
	// precompiled header once per translation unit.
	pchOverheadMultiplier = 1.2

	stableBonus    = 1.5
	systemBonus    = 1.2
	projectNeutral = 1.0
)

// stableHeaders are standard library headers that essentially never change,
// which makes them ideal precompilation candidates.
var stableHeaders = map[string]struct{}{
	"<iostream>":      {},
	"<string>":        {},
	"<vector>":        {},
	"<map>":           {},
	"<unordered_map>": {},
	"<set>":           {},
	"<unordered_set>": {},
	"<memory>":        {},
	"<algorithm>":     {},
	"<functional>":    {},
	"<utility>":       {},
	"<tuple>":         {},
	"<array>":         {},
	"<deque>":         {},
	"<list>":          {},
	"<queue>":         {},
	"<stack>":         {},
	"<regex>":         {},
	"<thread>":        {},
	"<mutex>":         {},
	"<atomic>":        {},
	"<chrono>":        {},
	"<fstream>":       {},
	"<sstream>":       {},
	"<iomanip>":       {},
	"<cstdint>":       {},
	"<cstring>":       {},
	"<cmath>":         {},
}

// Recommender ranks headers for inclusion in a precompiled header by how
// often they are included and how much each inclusion costs.
type Recommender struct {
	estimator *estimator.Estimator

	minUsage   int
	maxResults int
}

// Option configures a Recommender.
type Option func(*Recommender)

// WithMinUsage sets the minimum number of including files a header needs
// before it is considered.
func WithMinUsage(n int) Option {
	return func(r *Recommender) {
		if n > 0 {
			r.minUsage = n
		}
	}
}

// WithMaxResults caps the number of recommendations returned.
func WithMaxResults(n int) Option {
	return func(r *Recommender) {
		if n > 0 {
			r.maxResults = n
		}
	}
}

// New creates a Recommender backed by the given cost estimator.
func New(est *estimator.Estimator, opts ...Option) *Recommender {
	r := &Recommender{
		estimator:  est,
		minUsage:   types.DefaultPCHMinUsage,
		maxResults: types.DefaultPCHMaxResults,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recommend scans every file's includes and returns the best PCH
// candidates, ordered by score.
func (r *Recommender) Recommend(analyses map[string]*types.FileAnalysis) []types.PCHRecommendation {
	usage := make(map[string]int)
	usedBy := make(map[string][]string)

	paths := make([]string, 0, len(analyses))
	for path := range analyses {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		seen := make(map[string]struct{})
		for _, inc := range analyses[path].Includes {
			key := inc.Header
			if inc.IsSystem {
				key = "<" + inc.Header + ">"
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			usage[key]++
			usedBy[key] = append(usedBy[key], path)
		}
	}

	var recommendations []types.PCHRecommendation
	for header, count := range usage {
		if count < r.minUsage {
			continue
		}

		cost := r.estimator.Estimate(header, nil)
		if cost < MinCost {
			continue
		}

		_, stable := stableHeaders[header]
		score := float64(count) * cost * stabilityBonus(header)
		savings := math.Max(0.0, cost*float64(count)-cost*pchOverheadMultiplier)

		files := usedBy[header]
		sample := files
		if len(sample) > types.UsedByFileSample {
			sample = sample[:types.UsedByFileSample]
		}

		recommendations = append(recommendations, types.PCHRecommendation{
			Header:           header,
			UsageCount:       count,
			Cost:             cost,
			PCHScore:         score,
			EstimatedSavings: savings,
			IsSystem:         strings.HasPrefix(header, "<"),
			IsStable:         stable,
			UsedByFiles:      sample,
			TotalFilesUsing:  len(files),
		})
	}

	sort.Slice(recommendations, func(i, j int) bool {
		if recommendations[i].PCHScore != recommendations[j].PCHScore {
			return recommendations[i].PCHScore > recommendations[j].PCHScore
		}
		return recommendations[i].Header < recommendations[j].Header
	})

	if len(recommendations) > r.maxResults {
		recommendations = recommendations[:r.maxResults]
	}
	return recommendations
}

// GeneratePCHFileContent renders a pch.h that includes every recommended
// header, annotated with usage counts.
func GeneratePCHFileContent(recommendations []types.PCHRecommendation) string {
	var b strings.Builder
	b.WriteString("#ifndef PCH_H\n")
	b.WriteString("#define PCH_H\n")
	b.WriteString("\n")
	b.WriteString("// Precompiled header. Include only stable, widely used headers here;\n")
	b.WriteString("// every change to this file triggers a full rebuild.\n")
	b.WriteString("\n")

	for _, rec := range recommendations {
		header := rec.Header
		if !strings.HasPrefix(header, "<") {
			header = fmt.Sprintf("%q", header)
		}
		fmt.Fprintf(&b, "#include %s  // used by %d files\n", header, rec.UsageCount)
	}

	b.WriteString("\n")
	b.WriteString("#endif // PCH_H\n")
	return b.String()
}

// EstimateBenefit aggregates the expected savings of adopting the given
// recommendations.
func EstimateBenefit(recommendations []types.PCHRecommendation) types.PCHBenefit {
	var total float64
	files := make(map[string]struct{})
	for _, rec := range recommendations {
		total += rec.EstimatedSavings
		for _, f := range rec.UsedByFiles {
			files[f] = struct{}{}
		}
	}

	return types.PCHBenefit{
		TotalSavings:     total,
		FilesBenefiting:  len(files),
		HeadersInPCH:     len(recommendations),
		EstimatedSpeedup: math.Min(60.0, total/1000.0),
	}
}

func stabilityBonus(header string) float64 {
	if _, ok := stableHeaders[header]; ok {
		return stableBonus
	}
	if strings.HasPrefix(header, "<") {
		return systemBonus
	}
	return projectNeutral
}
