package pch

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/includeguard/includeguard/internal/estimator"
	"github.com/includeguard/includeguard/internal/graph"
	"github.com/includeguard/includeguard/internal/types"
)

// project builds analyses where every file includes the given system
// headers.
func project(files int, headers ...string) map[string]*types.FileAnalysis {
	byPath := make(map[string]*types.FileAnalysis)
	for i := 0; i < files; i++ {
		path := fmt.Sprintf("/p/file%02d.cpp", i)
		a := &types.FileAnalysis{Filepath: path}
		for line, h := range headers {
			a.Includes = append(a.Includes, types.Include{
				Header:     h,
				LineNumber: line + 1,
				IsSystem:   true,
				FullPath:   "<" + h + ">",
			})
		}
		byPath[path] = a
	}
	return byPath
}

func newRecommender(byPath map[string]*types.FileAnalysis, opts ...Option) *Recommender {
	analyses := make([]*types.FileAnalysis, 0, len(byPath))
	for _, a := range byPath {
		analyses = append(analyses, a)
	}
	g := graph.Build(analyses)
	return New(estimator.New(g, byPath), opts...)
}

func TestRecommendWidelyUsedHeader(t *testing.T) {
	byPath := project(5, "iostream")
	r := newRecommender(byPath)

	recs := r.Recommend(byPath)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, "<iostream>", rec.Header)
	assert.Equal(t, 5, rec.UsageCount)
	assert.Equal(t, 1500.0, rec.Cost)
	assert.True(t, rec.IsSystem)
	assert.True(t, rec.IsStable)
	assert.Equal(t, 5, rec.TotalFilesUsing)
	assert.Len(t, rec.UsedByFiles, types.UsedByFileSample)
	// 1500*5 usages minus the 1.2x load overhead.
	assert.InDelta(t, 1500*5-1500*1.2, rec.EstimatedSavings, 1e-9)
}

func TestRecommendRespectsMinUsage(t *testing.T) {
	byPath := project(2, "iostream")
	r := newRecommender(byPath) // default min usage is 3

	assert.Empty(t, r.Recommend(byPath))

	r = newRecommender(byPath, WithMinUsage(2))
	assert.Len(t, r.Recommend(byPath), 1)
}

func TestRecommendUserHeaderNeutralStability(t *testing.T) {
	byPath := project(5, "core.h")
	for _, a := range byPath {
		a.Includes[0].IsSystem = false
		a.Includes[0].FullPath = "core.h"
	}
	r := newRecommender(byPath)

	recs := r.Recommend(byPath)
	require.Len(t, recs, 1)
	assert.Equal(t, "core.h", recs[0].Header)
	assert.False(t, recs[0].IsSystem)
	assert.False(t, recs[0].IsStable)
	// Neutral stability: score is plain usage times cost.
	assert.InDelta(t, 5*recs[0].Cost, recs[0].PCHScore, 1e-9)
}

func TestRecommendOrdersByScore(t *testing.T) {
	byPath := project(4, "iostream", "deque")
	r := newRecommender(byPath)

	recs := r.Recommend(byPath)
	require.Len(t, recs, 2)
	assert.Equal(t, "<iostream>", recs[0].Header, "higher cost and stability first")
	assert.Greater(t, recs[0].PCHScore, recs[1].PCHScore)
}

func TestRecommendCapsResults(t *testing.T) {
	headers := make([]string, 0, 8)
	for _, h := range []string{"iostream", "vector", "string", "algorithm", "memory", "thread", "mutex", "regex"} {
		headers = append(headers, h)
	}
	byPath := project(4, headers...)

	r := newRecommender(byPath, WithMaxResults(3))
	assert.Len(t, r.Recommend(byPath), 3)
}

func TestGeneratePCHFileContent(t *testing.T) {
	recs := []types.PCHRecommendation{
		{Header: "<iostream>", UsageCount: 12},
		{Header: "core/types.h", UsageCount: 7},
	}

	content := GeneratePCHFileContent(recs)
	assert.True(t, strings.HasPrefix(content, "#ifndef PCH_H\n#define PCH_H\n"))
	assert.Contains(t, content, "#include <iostream>  // used by 12 files")
	assert.Contains(t, content, "#include \"core/types.h\"  // used by 7 files")
	assert.True(t, strings.HasSuffix(content, "#endif // PCH_H\n"))
}

func TestEstimateBenefit(t *testing.T) {
	recs := []types.PCHRecommendation{
		{Header: "<iostream>", EstimatedSavings: 6000, UsedByFiles: []string{"/p/a.cpp", "/p/b.cpp"}},
		{Header: "<vector>", EstimatedSavings: 2000, UsedByFiles: []string{"/p/b.cpp", "/p/c.cpp"}},
	}

	benefit := EstimateBenefit(recs)
	assert.Equal(t, 8000.0, benefit.TotalSavings)
	assert.Equal(t, 3, benefit.FilesBenefiting)
	assert.Equal(t, 2, benefit.HeadersInPCH)
	assert.InDelta(t, 8.0, benefit.EstimatedSpeedup, 1e-9)
}

func TestEstimateBenefitSpeedupCapped(t *testing.T) {
	recs := []types.PCHRecommendation{
		{Header: "<regex>", EstimatedSavings: 200000},
	}
	benefit := EstimateBenefit(recs)
	assert.Equal(t, 60.0, benefit.EstimatedSpeedup)
}
