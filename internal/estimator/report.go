package estimator

import (
	"path/filepath"
	"sort"

	"github.com/includeguard/includeguard/internal/types"
)

// AnalyzeFileCosts estimates every include in a file and returns the
// entries sorted by cost, highest first.
func (e *Estimator) AnalyzeFileCosts(analysis *types.FileAnalysis) []types.CostEntry {
	entries := make([]types.CostEntry, 0, len(analysis.Includes))

	for _, inc := range analysis.Includes {
		headerAnalysis := e.analyses[inc.FullPath]

		cost := e.Estimate(inc.Header, headerAnalysis)
		likelyUsed, usageConfidence := e.CheckUsage(analysis.Filepath, inc.Header)

		entries = append(entries, types.CostEntry{
			Header:             inc.Header,
			Line:               inc.LineNumber,
			EstimatedCost:      round1(cost),
			IsSystem:           inc.IsSystem,
			LikelyUsed:         likelyUsed,
			UsageConfidence:    round2(usageConfidence),
			EstimateConfidence: round2(estimateConfidence(inc, headerAnalysis)),
			FullPath:           inc.FullPath,
		})
	}

	sortByCost(entries)
	return entries
}

// GenerateReport builds the full cost breakdown for one file: totals,
// wasted cost from includes judged unused, and the unused-and-expensive
// subset flagged as optimization opportunities.
func (e *Estimator) GenerateReport(analysis *types.FileAnalysis) types.FileReport {
	entries := e.AnalyzeFileCosts(analysis)

	var totalCost, wastedCost float64
	var opportunities []types.CostEntry
	for _, entry := range entries {
		totalCost += entry.EstimatedCost
		if !entry.LikelyUsed {
			wastedCost += entry.EstimatedCost
			if entry.EstimatedCost > e.opportunityCostFloor {
				opportunities = append(opportunities, entry)
			}
		}
	}

	savingsPct := 0.0
	if totalCost > 0 {
		savingsPct = wastedCost / totalCost * 100
	}

	topExpensive := entries
	if len(topExpensive) > types.TopExpensiveCount {
		topExpensive = topExpensive[:types.TopExpensiveCount]
	}

	return types.FileReport{
		File:                      analysis.Filepath,
		TotalIncludes:             len(entries),
		TotalEstimatedCost:        round1(totalCost),
		WastedCost:                round1(wastedCost),
		PotentialSavingsPct:       round1(savingsPct),
		TopExpensive:              topExpensive,
		OptimizationOpportunities: opportunities,
		AllIncludes:               entries,
		FileMetrics: types.FileMetrics{
			TotalLines:   analysis.TotalLines,
			CodeLines:    analysis.CodeLines,
			HasTemplates: analysis.HasTemplates,
			HasMacros:    analysis.HasMacros,
		},
	}
}

// GenerateProjectSummary aggregates file reports across the whole project:
// totals, the files with the most waste, and a capped, cost-ranked list of
// every optimization opportunity found.
func (e *Estimator) GenerateProjectSummary(reports []types.FileReport) types.ProjectSummary {
	var summary types.ProjectSummary
	summary.TotalFiles = len(reports)

	for _, r := range reports {
		summary.TotalIncludes += r.TotalIncludes
		summary.TotalCost += r.TotalEstimatedCost
		summary.TotalWaste += r.WastedCost
	}

	if summary.TotalCost > 0 {
		summary.WastePercentage = round1(summary.TotalWaste / summary.TotalCost * 100)
	}
	if summary.TotalFiles > 0 {
		summary.AvgCostPerFile = round1(summary.TotalCost / float64(summary.TotalFiles))
	}
	summary.TotalCost = round1(summary.TotalCost)
	summary.TotalWaste = round1(summary.TotalWaste)

	byWaste := make([]types.FileReport, len(reports))
	copy(byWaste, reports)
	sort.SliceStable(byWaste, func(i, j int) bool {
		return byWaste[i].WastedCost > byWaste[j].WastedCost
	})
	if len(byWaste) > types.TopWastefulFileCount {
		byWaste = byWaste[:types.TopWastefulFileCount]
	}
	summary.TopWastefulFiles = byWaste

	var opportunities []types.OpportunityRef
	for _, r := range reports {
		for _, opp := range r.OptimizationOpportunities {
			opportunities = append(opportunities, types.OpportunityRef{
				File:     filepath.Base(r.File),
				FullPath: r.File,
				Header:   opp.Header,
				Cost:     opp.EstimatedCost,
				Line:     opp.Line,
			})
		}
	}
	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].Cost > opportunities[j].Cost
	})
	if len(opportunities) > types.TopOpportunityCount {
		opportunities = opportunities[:types.TopOpportunityCount]
	}
	summary.TopOpportunities = opportunities

	return summary
}

func sortByCost(entries []types.CostEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].EstimatedCost != entries[j].EstimatedCost {
			return entries[i].EstimatedCost > entries[j].EstimatedCost
		}
		return entries[i].Line < entries[j].Line
	})
}
