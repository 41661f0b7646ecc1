package estimator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/includeguard/includeguard/internal/graph"
	"github.com/includeguard/includeguard/internal/types"
)

// unusedMapFixture writes a source file that includes <map> without using
// it and returns the matching analysis.
func unusedMapFixture(t *testing.T) *types.FileAnalysis {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.cpp")
	src := "#include <map>\nint main() { return 0; }\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	return &types.FileAnalysis{
		Filepath:   path,
		TotalLines: 3,
		CodeLines:  2,
		Includes: []types.Include{
			{Header: "map", LineNumber: 1, IsSystem: true, FullPath: "<map>"},
		},
	}
}

func TestGenerateReportUnusedExpensiveInclude(t *testing.T) {
	analysis := unusedMapFixture(t)
	g := graph.Build([]*types.FileAnalysis{analysis})
	e := New(g, map[string]*types.FileAnalysis{analysis.Filepath: analysis})

	report := e.GenerateReport(analysis)

	if report.TotalIncludes != 1 {
		t.Fatalf("TotalIncludes = %d, want 1", report.TotalIncludes)
	}
	if report.TotalEstimatedCost != 900 {
		t.Errorf("TotalEstimatedCost = %v, want 900", report.TotalEstimatedCost)
	}
	if report.WastedCost != 900 {
		t.Errorf("WastedCost = %v, want 900", report.WastedCost)
	}
	if report.PotentialSavingsPct != 100 {
		t.Errorf("PotentialSavingsPct = %v, want 100", report.PotentialSavingsPct)
	}
	if len(report.OptimizationOpportunities) != 1 {
		t.Fatalf("opportunities = %d, want 1 (cost 900 above the floor)", len(report.OptimizationOpportunities))
	}
	if report.OptimizationOpportunities[0].Header != "map" {
		t.Errorf("opportunity header = %q, want map", report.OptimizationOpportunities[0].Header)
	}
}

func TestGenerateReportEntriesSortedByCost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.cpp")
	src := "#include \"cheap.h\"\n#include <iostream>\nint main() { std::cout << 1; }\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	analysis := &types.FileAnalysis{
		Filepath: path,
		Includes: []types.Include{
			{Header: "cheap.h", LineNumber: 1, FullPath: "cheap.h"},
			{Header: "iostream", LineNumber: 2, IsSystem: true, FullPath: "<iostream>"},
		},
	}

	g := graph.Build([]*types.FileAnalysis{analysis})
	e := New(g, map[string]*types.FileAnalysis{analysis.Filepath: analysis})

	report := e.GenerateReport(analysis)
	if len(report.AllIncludes) != 2 {
		t.Fatalf("AllIncludes = %d, want 2", len(report.AllIncludes))
	}
	if report.AllIncludes[0].Header != "iostream" {
		t.Errorf("first entry = %q, want the costlier iostream", report.AllIncludes[0].Header)
	}
	if report.AllIncludes[0].EstimatedCost < report.AllIncludes[1].EstimatedCost {
		t.Error("entries not sorted by descending cost")
	}
}

func TestGenerateProjectSummary(t *testing.T) {
	reports := []types.FileReport{
		{
			File:               "/p/a.cpp",
			TotalIncludes:      2,
			TotalEstimatedCost: 2000,
			WastedCost:         1000,
			OptimizationOpportunities: []types.CostEntry{
				{Header: "map", Line: 1, EstimatedCost: 900},
			},
		},
		{
			File:               "/p/b.cpp",
			TotalIncludes:      1,
			TotalEstimatedCost: 1000,
			WastedCost:         200,
		},
	}

	g := graph.Build(nil)
	e := New(g, map[string]*types.FileAnalysis{})

	summary := e.GenerateProjectSummary(reports)

	if summary.TotalFiles != 2 || summary.TotalIncludes != 3 {
		t.Errorf("totals = %+v", summary)
	}
	if summary.TotalCost != 3000 {
		t.Errorf("TotalCost = %v, want 3000", summary.TotalCost)
	}
	if summary.TotalWaste != 1200 {
		t.Errorf("TotalWaste = %v, want 1200", summary.TotalWaste)
	}
	if summary.WastePercentage != 40 {
		t.Errorf("WastePercentage = %v, want 40", summary.WastePercentage)
	}
	if summary.AvgCostPerFile != 1500 {
		t.Errorf("AvgCostPerFile = %v, want 1500", summary.AvgCostPerFile)
	}

	if len(summary.TopWastefulFiles) != 2 || summary.TopWastefulFiles[0].File != "/p/a.cpp" {
		t.Errorf("TopWastefulFiles = %+v", summary.TopWastefulFiles)
	}
	if len(summary.TopOpportunities) != 1 {
		t.Fatalf("TopOpportunities = %+v", summary.TopOpportunities)
	}
	opp := summary.TopOpportunities[0]
	if opp.File != "a.cpp" || opp.FullPath != "/p/a.cpp" || opp.Header != "map" {
		t.Errorf("opportunity = %+v", opp)
	}
}

func TestGenerateProjectSummaryEmpty(t *testing.T) {
	e := New(graph.Build(nil), map[string]*types.FileAnalysis{})

	summary := e.GenerateProjectSummary(nil)
	if summary.TotalFiles != 0 || summary.WastePercentage != 0 || summary.AvgCostPerFile != 0 {
		t.Errorf("empty summary = %+v", summary)
	}
}
