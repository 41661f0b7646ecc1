// Package engine wires the analysis pipeline together: scan, graph build,
// cost estimation, and the recommendation passes. Commands and the watcher
// talk to an Engine rather than to individual stages.
package engine

import (
	"context"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/includeguard/includeguard/internal/config"
	"github.com/includeguard/includeguard/internal/estimator"
	"github.com/includeguard/includeguard/internal/fwddecl"
	"github.com/includeguard/includeguard/internal/graph"
	"github.com/includeguard/includeguard/internal/parser"
	"github.com/includeguard/includeguard/internal/pch"
	"github.com/includeguard/includeguard/internal/types"
)

// Result is the full output of a project analysis.
type Result struct {
	Statistics  types.ScanStatistics                      `json:"statistics"`
	GraphStats  types.GraphStats                          `json:"graph_stats"`
	Reports     []types.FileReport                        `json:"reports"`
	Summary     types.ProjectSummary                      `json:"summary"`
	ForwardDecl map[string][]types.ForwardDeclOpportunity `json:"forward_declarations,omitempty"`
	PCH         []types.PCHRecommendation                 `json:"pch_recommendations,omitempty"`
	PCHBenefit  types.PCHBenefit                          `json:"pch_benefit"`
	Cycles      [][]string                                `json:"cycles,omitempty"`
	Unresolved  map[string]string                         `json:"unresolved_suggestions,omitempty"`
}

// Engine runs the analysis pipeline for one configured project.
type Engine struct {
	cfg     *config.Config
	scanner *parser.Scanner
}

// New creates an engine for the given configuration.
func New(cfg *config.Config) *Engine {
	return &Engine{
		cfg:     cfg,
		scanner: parser.NewScanner(cfg),
	}
}

// Scanner exposes the project scanner, mainly for the watcher's file
// filtering.
func (e *Engine) Scanner() *parser.Scanner {
	return e.scanner
}

// Analyze scans the project and runs every analysis stage. An empty project
// is not an error: the result simply reports zero files.
func (e *Engine) Analyze(ctx context.Context) (*Result, error) {
	analyses, err := e.scanner.ScanProject(ctx)
	if err != nil {
		return nil, err
	}
	if len(analyses) == 0 {
		log.Warnf("no C/C++ files found under %s", e.cfg.Project.Root)
		return &Result{}, nil
	}

	byPath := make(map[string]*types.FileAnalysis, len(analyses))
	for _, a := range analyses {
		byPath[a.Filepath] = a
	}

	g := graph.Build(analyses)
	est := e.newEstimator(g, byPath)

	reports := make([]types.FileReport, 0, len(analyses))
	for _, a := range analyses {
		reports = append(reports, est.GenerateReport(a))
	}

	detector := fwddecl.New()
	forward := make(map[string][]types.ForwardDeclOpportunity)
	for _, a := range analyses {
		if opps := detector.FindOpportunities(a.Filepath, a); len(opps) > 0 {
			forward[a.Filepath] = opps
		}
	}

	recommender := pch.New(est,
		pch.WithMinUsage(e.cfg.PCH.MinUsageCount),
		pch.WithMaxResults(e.cfg.PCH.MaxRecommendations),
	)
	recommendations := recommender.Recommend(byPath)

	return &Result{
		Statistics:  parser.Statistics(analyses),
		GraphStats:  g.Statistics(),
		Reports:     reports,
		Summary:     est.GenerateProjectSummary(reports),
		ForwardDecl: forward,
		PCH:         recommendations,
		PCHBenefit:  pch.EstimateBenefit(recommendations),
		Cycles:      g.FindCycles(),
		Unresolved:  g.UnresolvedSuggestions(),
	}, nil
}

// AnalyzeFile runs the cost and forward-declaration passes for a single
// file, using the whole project for graph context.
func (e *Engine) AnalyzeFile(ctx context.Context, path string) (*types.FileReport, []types.ForwardDeclOpportunity, error) {
	analyses, err := e.scanner.ScanProject(ctx)
	if err != nil {
		return nil, nil, err
	}

	byPath := make(map[string]*types.FileAnalysis, len(analyses))
	for _, a := range analyses {
		byPath[a.Filepath] = a
	}

	target, ok := byPath[path]
	if !ok {
		// Outside the scanned set, parse it standalone.
		target, err = e.scanner.Parser().ParseFile(path)
		if err != nil {
			return nil, nil, err
		}
		analyses = append(analyses, target)
		byPath[target.Filepath] = target
		sort.Slice(analyses, func(i, j int) bool {
			return analyses[i].Filepath < analyses[j].Filepath
		})
	}

	g := graph.Build(analyses)
	est := e.newEstimator(g, byPath)

	report := est.GenerateReport(target)
	opportunities := fwddecl.New().FindOpportunities(target.Filepath, target)
	return &report, opportunities, nil
}

// Graph scans the project and returns the built dependency graph.
func (e *Engine) Graph(ctx context.Context) (*graph.Graph, error) {
	analyses, err := e.scanner.ScanProject(ctx)
	if err != nil {
		return nil, err
	}
	return graph.Build(analyses), nil
}

func (e *Engine) newEstimator(g *graph.Graph, byPath map[string]*types.FileAnalysis) *estimator.Estimator {
	var opts []estimator.Option
	if e.cfg.Estimator.CacheSize > 0 {
		opts = append(opts, estimator.WithCacheSize(e.cfg.Estimator.CacheSize))
	}
	if e.cfg.Estimator.UsageThreshold > 0 {
		opts = append(opts, estimator.WithUsageThreshold(e.cfg.Estimator.UsageThreshold))
	}
	if e.cfg.Estimator.OpportunityCostFloor > 0 {
		opts = append(opts, estimator.WithOpportunityCostFloor(e.cfg.Estimator.OpportunityCostFloor))
	}
	return estimator.New(g, byPath, opts...)
}
