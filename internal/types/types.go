package types

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Default scan limits and tunables shared across packages
const (
	DefaultUsageThreshold       = 0.3
	DefaultOpportunityCostFloor = 500.0
	DefaultPCHMinUsage          = 3
	DefaultPCHMaxResults        = 20
	DefaultPCHCostFloor         = 100.0
	DefaultWorkers              = 0 // 0 = auto-detect (NumCPU)
	DefaultWatchDebounceMs      = 300

	// Result caps for the boundary payloads
	TopExpensiveCount    = 5
	TopWastefulFileCount = 10
	TopOpportunityCount  = 20
	UsedByFileSample     = 5
)

// DefaultExtensions lists the C/C++ file extensions scanned by default.
var DefaultExtensions = []string{".cpp", ".cc", ".cxx", ".c", ".h", ".hpp", ".hxx", ".hh"}

// DefaultExcludeDirs lists directory names skipped during a project scan,
// matched by path component equality.
var DefaultExcludeDirs = []string{
	"build", "cmake-build", "cmake-build-debug", "cmake-build-release",
	".git", ".svn", "node_modules", "venv", "env", "__pycache__",
}

// Include represents a single #include directive found in a source file.
// Immutable once parsed.
type Include struct {
	Header     string `json:"header"`
	LineNumber int    `json:"line_number"`
	IsSystem   bool   `json:"is_system"` // true for <>, false for ""
	FullPath   string `json:"full_path"` // resolved absolute path, or raw header text if unresolved
}

// String renders the include with its original delimiters.
func (i Include) String() string {
	if i.IsSystem {
		return fmt.Sprintf("Include(<%s> at line %d)", i.Header, i.LineNumber)
	}
	return fmt.Sprintf("Include(%q at line %d)", i.Header, i.LineNumber)
}

// NodeID returns the graph node identifier for this include's target:
// the resolved path when resolution succeeded, otherwise a synthetic
// external identifier (<header> for system includes, bare name otherwise).
func (i Include) NodeID() string {
	if i.FullPath != "" && i.FullPath != i.Header && !strings.HasPrefix(i.FullPath, "<") {
		return i.FullPath
	}
	if i.IsSystem {
		return "<" + i.Header + ">"
	}
	return i.Header
}

// FileAnalysis holds the scan results for a single source or header file.
// Created once per scan and never mutated afterwards.
type FileAnalysis struct {
	Filepath       string    `json:"filepath"`
	Includes       []Include `json:"includes"`
	TotalLines     int       `json:"total_lines"`
	CodeLines      int       `json:"code_lines"`
	CommentLines   int       `json:"comment_lines"`
	BlankLines     int       `json:"blank_lines"`
	HasTemplates   bool      `json:"has_templates"`
	HasMacros      bool      `json:"has_macros"`
	NamespaceCount int       `json:"namespace_count"`
	ClassCount     int       `json:"class_count"`
	ContentHash    uint64    `json:"content_hash"` // xxhash64 of the raw bytes
}

func (a *FileAnalysis) String() string {
	return fmt.Sprintf("FileAnalysis(%s, %d includes)", filepath.Base(a.Filepath), len(a.Includes))
}

// IsHeader reports whether the analyzed file is a header by extension.
func (a *FileAnalysis) IsHeader() bool {
	switch strings.ToLower(filepath.Ext(a.Filepath)) {
	case ".h", ".hpp", ".hxx", ".hh":
		return true
	}
	return false
}

// CostEntry is the per-include cost record produced by the estimator.
type CostEntry struct {
	Header             string  `json:"header"`
	Line               int     `json:"line"`
	EstimatedCost      float64 `json:"estimated_cost"`
	IsSystem           bool    `json:"is_system"`
	LikelyUsed         bool    `json:"likely_used"`
	UsageConfidence    float64 `json:"usage_confidence"`
	EstimateConfidence float64 `json:"estimate_confidence"`
	FullPath           string  `json:"full_path"`
}

// FileMetrics is the metrics subset attached to a file report.
type FileMetrics struct {
	TotalLines   int  `json:"total_lines"`
	CodeLines    int  `json:"code_lines"`
	HasTemplates bool `json:"has_templates"`
	HasMacros    bool `json:"has_macros"`
}

// FileReport is the per-file cost breakdown. Derived on demand, not stored.
type FileReport struct {
	File                      string      `json:"file"`
	TotalIncludes             int         `json:"total_includes"`
	TotalEstimatedCost        float64     `json:"total_estimated_cost"`
	WastedCost                float64     `json:"wasted_cost"`
	PotentialSavingsPct       float64     `json:"potential_savings_pct"`
	TopExpensive              []CostEntry `json:"top_expensive"`
	OptimizationOpportunities []CostEntry `json:"optimization_opportunities"`
	AllIncludes               []CostEntry `json:"all_includes"`
	FileMetrics               FileMetrics `json:"file_metrics"`
}

// OpportunityRef points a project-level opportunity back to its file and line.
type OpportunityRef struct {
	File     string  `json:"file"`
	FullPath string  `json:"full_path"`
	Header   string  `json:"header"`
	Cost     float64 `json:"cost"`
	Line     int     `json:"line"`
}

// ProjectSummary aggregates file reports across the whole project.
type ProjectSummary struct {
	TotalFiles       int              `json:"total_files"`
	TotalIncludes    int              `json:"total_includes"`
	TotalCost        float64          `json:"total_cost"`
	TotalWaste       float64          `json:"total_waste"`
	WastePercentage  float64          `json:"waste_percentage"`
	AvgCostPerFile   float64          `json:"avg_cost_per_file"`
	TopWastefulFiles []FileReport     `json:"top_wasteful_files"`
	TopOpportunities []OpportunityRef `json:"top_opportunities"`
}

// ForwardDeclOpportunity flags an include whose only use is pointer or
// reference, making a forward declaration a likely replacement.
type ForwardDeclOpportunity struct {
	Header     string  `json:"header"`
	ClassName  string  `json:"class_name"`
	Line       int     `json:"line"`
	Confidence float64 `json:"confidence"`
	Suggestion string  `json:"suggestion"`
}

// PCHRecommendation ranks a header as a precompiled-header candidate.
type PCHRecommendation struct {
	Header           string   `json:"header"`
	UsageCount       int      `json:"usage_count"`
	Cost             float64  `json:"cost"`
	PCHScore         float64  `json:"pch_score"`
	EstimatedSavings float64  `json:"estimated_savings"`
	IsSystem         bool     `json:"is_system"`
	IsStable         bool     `json:"is_stable"`
	UsedByFiles      []string `json:"used_by_files"`
	TotalFilesUsing  int      `json:"total_files_using"`
}

// PCHBenefit is the aggregate benefit estimate for a PCH configuration.
type PCHBenefit struct {
	TotalSavings     float64 `json:"total_savings"`
	FilesBenefiting  int     `json:"files_benefiting"`
	EstimatedSpeedup float64 `json:"estimated_speedup"`
	HeadersInPCH     int     `json:"headers_in_pch"`
}

// GraphStats summarizes the dependency graph.
type GraphStats struct {
	TotalNodes    int     `json:"total_nodes"`
	InternalNodes int     `json:"internal_nodes"`
	ExternalNodes int     `json:"external_nodes"`
	TotalEdges    int     `json:"total_edges"`
	AvgDegree     float64 `json:"avg_degree"`
	Cycles        int     `json:"cycles"`
	MaxDepth      int     `json:"max_depth"`
}

// ScanStatistics aggregates parser output across a project scan.
type ScanStatistics struct {
	TotalFiles         int     `json:"total_files"`
	TotalIncludes      int     `json:"total_includes"`
	SystemIncludes     int     `json:"system_includes"`
	UserIncludes       int     `json:"user_includes"`
	TotalLines         int     `json:"total_lines"`
	TotalCodeLines     int     `json:"total_code_lines"`
	AvgIncludesPerFile float64 `json:"avg_includes_per_file"`
	AvgLinesPerFile    float64 `json:"avg_lines_per_file"`
	FilesWithTemplates int     `json:"files_with_templates"`
	FilesWithMacros    int     `json:"files_with_macros"`
}
