package estimator

import (
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/includeguard/includeguard/internal/graph"
	"github.com/includeguard/includeguard/internal/types"
)

// DefaultCacheSize is the cost cache capacity used when the caller does not
// configure one.
const DefaultCacheSize = 4096

// Estimator assigns heuristic build-time costs to headers and judges
// whether each include is actually used. Estimates approximate relative
// compile-time impact; they are never compiler-verified.
//
// The estimator holds a read-only reference to the dependency graph and
// exclusively owns its memoization cache: given the same graph contents,
// Estimate is deterministic for the same (header, owning file) pair.
type Estimator struct {
	graph    *graph.Graph
	analyses map[string]*types.FileAnalysis

	// Cost memoization, keyed "header:owning-file-or-none". The LRU is
	// internally synchronized, so repeated queries stay O(1) and the
	// single-owner contract holds even if callers estimate in parallel.
	cache *lru.Cache[string, float64]

	usageThreshold       float64
	opportunityCostFloor float64
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithCacheSize sets the cost cache capacity.
func WithCacheSize(size int) Option {
	return func(e *Estimator) {
		if size > 0 {
			if cache, err := lru.New[string, float64](size); err == nil {
				e.cache = cache
			}
		}
	}
}

// WithUsageThreshold overrides the confidence above which an include counts
// as likely used. The default 0.3 is a calibrated heuristic, not a law.
func WithUsageThreshold(threshold float64) Option {
	return func(e *Estimator) {
		e.usageThreshold = threshold
	}
}

// WithOpportunityCostFloor overrides the minimum cost before an unused
// include is reported as an optimization opportunity.
func WithOpportunityCostFloor(floor float64) Option {
	return func(e *Estimator) {
		e.opportunityCostFloor = floor
	}
}

// New creates an estimator over the given graph and analyses. The analyses
// map is keyed by resolved file path and lets the size component of the cost
// model see a header's own metrics.
func New(g *graph.Graph, analyses map[string]*types.FileAnalysis, opts ...Option) *Estimator {
	cache, _ := lru.New[string, float64](DefaultCacheSize)
	e := &Estimator{
		graph:                g,
		analyses:             analyses,
		cache:                cache,
		usageThreshold:       types.DefaultUsageThreshold,
		opportunityCostFloor: types.DefaultOpportunityCostFloor,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate returns the heuristic cost of including a header:
// base cost + file size component + transitive dependency component.
// analysis may be nil when the header's own file was not scanned.
func (e *Estimator) Estimate(header string, analysis *types.FileAnalysis) float64 {
	cacheKey := header + ":none"
	if analysis != nil {
		cacheKey = header + ":" + analysis.Filepath
	}
	if cost, ok := e.cache.Get(cacheKey); ok {
		return cost
	}

	cost := e.BaseCost(header)

	if analysis != nil {
		cost += float64(analysis.TotalLines) * CostPerLine

		if analysis.HasTemplates {
			cost *= TemplateMultiplier
			cost += float64(strings.Count(header, "template")) * TemplateCostBonus
		}
		if analysis.HasMacros {
			cost *= MacroMultiplier
		}

		cost += float64(analysis.ClassCount) * ClassCost
		cost += float64(analysis.NamespaceCount) * NamespaceCost
	}

	cost += e.transitiveCost(header, analysis)

	e.cache.Add(cacheKey, cost)
	return cost
}

// BaseCost looks up the known expensive-header table by lowercase substring
// containment, first rule wins. Unmatched system headers cost a flat 300,
// unmatched user headers 150: system headers are assumed heavier than
// typical project headers.
func (e *Estimator) BaseCost(header string) float64 {
	headerLower := strings.ToLower(header)
	for _, rule := range expensiveHeaders {
		if strings.Contains(headerLower, rule.Match) {
			return rule.Cost
		}
	}
	if strings.HasPrefix(header, "<") || e.isSystemNode(header) {
		return SystemHeaderBaseCost
	}
	return UserHeaderBaseCost
}

func (e *Estimator) isSystemNode(header string) bool {
	if node := e.graph.Node("<" + header + ">"); node != nil {
		return node.IsSystem
	}
	return false
}

// transitiveCost models the cost of everything a header pulls in: headers
// that include many other headers are expensive even when small themselves.
// Past depth 5 an escalating penalty kicks in, matching the observed
// superlinear cost of very deep include chains.
func (e *Estimator) transitiveCost(header string, analysis *types.FileAnalysis) float64 {
	key := e.graphKey(header, analysis)
	if key == "" {
		return 0
	}

	deps := e.graph.TransitiveDependencies(key)
	depth := e.graph.DependencyDepth(key)

	cost := float64(len(deps)) * TransitiveDepCost
	cost += float64(depth) * DepthCost
	if depth > DeepChainThreshold {
		cost += float64(depth-DeepChainThreshold) * DeepChainPenalty
	}
	return cost
}

// graphKey maps a header reference onto a graph node ID: the raw text, its
// bracketed system form, or the owning file's resolved path. Unknown headers
// yield no key and a zero transitive component.
func (e *Estimator) graphKey(header string, analysis *types.FileAnalysis) string {
	if e.graph.HasNode(header) {
		return header
	}
	if bracketed := "<" + header + ">"; e.graph.HasNode(bracketed) {
		return bracketed
	}
	if analysis != nil && e.graph.HasNode(analysis.Filepath) {
		return analysis.Filepath
	}
	return ""
}

var includeLinePattern = regexp.MustCompile(`#include[^\n]*`)

// CheckUsage judges whether a source file actually uses a header, from
// independent lexical signals: the header's base name appearing in the text,
// std:: usage for bracketed system headers, and known signature symbols.
// Confidence is the fraction of evaluated signals that fired.
//
// Unreadable source files return (true, 0): assume the include is needed,
// so an I/O failure never produces an incorrect removal suggestion.
func (e *Estimator) CheckUsage(sourceFile, header string) (bool, float64) {
	data, err := os.ReadFile(sourceFile)
	if err != nil {
		return true, 0.0
	}

	// Drop the include lines themselves so the header's own directive
	// does not count as a name match.
	content := includeLinePattern.ReplaceAllString(string(data), "")
	contentLower := strings.ToLower(content)

	baseName := strings.TrimSuffix(filepath.Base(header), filepath.Ext(header))

	fired := 0
	evaluated := 0

	evaluated++
	if baseName != "" && strings.Contains(contentLower, strings.ToLower(baseName)) {
		fired++
	}

	if strings.HasPrefix(header, "<") {
		evaluated++
		if strings.Contains(content, "std::") {
			fired++
		}
	}

	evaluated++
	if symbolUsed(header, content) {
		fired++
	}

	confidence := float64(fired) / float64(evaluated)
	return confidence > e.usageThreshold, confidence
}

// symbolUsed consults the signature-symbol table: the first rule whose name
// is contained in the header decides, firing when any of its symbols appears
// in the text.
func symbolUsed(header, content string) bool {
	for _, rule := range headerSymbols {
		if strings.Contains(header, rule.Match) {
			for _, symbol := range rule.Symbols {
				if strings.Contains(content, symbol) {
					return true
				}
			}
			return false
		}
	}
	return false
}

// estimateConfidence scores how much to trust a cost estimate: boosted for
// table-known headers and headers whose own file was analyzed, penalized for
// unknown system headers.
func estimateConfidence(inc types.Include, analysis *types.FileAnalysis) float64 {
	confidence := 0.5

	headerLower := strings.ToLower(inc.Header)
	for _, rule := range expensiveHeaders {
		if strings.Contains(headerLower, rule.Match) {
			confidence += 0.3
			break
		}
	}

	if analysis != nil {
		confidence += 0.2
	}

	if inc.IsSystem && !isKnownHeaderName(inc.Header) {
		confidence -= 0.2
	}

	return clamp01(confidence)
}

func isKnownHeaderName(header string) bool {
	for _, rule := range expensiveHeaders {
		if rule.Match == header {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
