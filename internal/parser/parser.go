package parser

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"

	incerrors "github.com/includeguard/includeguard/internal/errors"
	"github.com/includeguard/includeguard/internal/types"
)

// Parser extracts include directives and structural metrics from C/C++
// sources without invoking a compiler or preprocessor. All detection is
// lexical: the results are heuristics, not semantic facts.
type Parser struct {
	projectRoot  string
	includePaths []string
}

var (
	// Anchored to line start so an "#include" token inside a string
	// literal never matches.
	includePattern = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*include[ \t]*([<"])([^>"]+)([>"])`)

	singleCommentPattern = regexp.MustCompile(`(?m)//.*$`)
	multiCommentPattern  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	templatePattern      = regexp.MustCompile(`\btemplate\s*<`)
	macroPattern         = regexp.MustCompile(`(?m)^\s*#\s*define\s+`)
	namespacePattern     = regexp.MustCompile(`\bnamespace\s+\w+`)
	classPattern         = regexp.MustCompile(`\b(class|struct)\s+\w+`)
)

// New creates a parser rooted at projectRoot. includePaths are additional
// header search directories; the project root is always searched first.
func New(projectRoot string, includePaths []string) *Parser {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		root = filepath.Clean(projectRoot)
	}

	paths := make([]string, 0, len(includePaths)+1)
	paths = append(paths, root)
	for _, p := range includePaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = filepath.Clean(p)
		}
		paths = append(paths, abs)
	}

	return &Parser{
		projectRoot:  root,
		includePaths: paths,
	}
}

// Root returns the absolute project root the parser scans under.
func (p *Parser) Root() string {
	return p.projectRoot
}

// ParseFile scans a single file for include directives and metrics.
// Read failures return a recoverable *errors.FileError so a directory scan
// can log and continue.
func (p *Parser) ParseFile(path string) (*types.FileAnalysis, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, incerrors.NewFileError("read", abs, err)
	}

	// Permissive decode: invalid bytes are carried through rather than
	// failing the scan. The line-anchored patterns are byte-safe.
	content := string(data)

	analysis := &types.FileAnalysis{
		Filepath:    abs,
		ContentHash: xxhash.Sum64(data),
	}

	for _, match := range includePattern.FindAllStringSubmatchIndex(content, -1) {
		open := content[match[2]:match[3]]
		header := content[match[4]:match[5]]
		closing := content[match[6]:match[7]]

		// Delimiters must pair up; malformed directives are skipped.
		if (open == "<" && closing != ">") || (open == `"` && closing != `"`) {
			continue
		}

		line := strings.Count(content[:match[0]], "\n") + 1
		isSystem := open == "<"

		analysis.Includes = append(analysis.Includes, types.Include{
			Header:     header,
			LineNumber: line,
			IsSystem:   isSystem,
			FullPath:   p.resolveInclude(header, abs, isSystem),
		})
	}

	lines := strings.Split(content, "\n")
	analysis.TotalLines = len(lines)

	stripped := StripComments(content)
	for _, l := range strings.Split(stripped, "\n") {
		if strings.TrimSpace(l) != "" {
			analysis.CodeLines++
		}
	}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			analysis.BlankLines++
		}
	}
	analysis.CommentLines = analysis.TotalLines - analysis.CodeLines - analysis.BlankLines

	analysis.HasTemplates = templatePattern.MatchString(content)
	analysis.HasMacros = macroPattern.MatchString(content)
	analysis.NamespaceCount = len(namespacePattern.FindAllString(content, -1))
	analysis.ClassCount = len(classPattern.FindAllString(content, -1))

	return analysis, nil
}

// resolveInclude finds the on-disk path of an included header.
// System headers keep their bracket form so the graph can identify them.
// Quoted headers are tried relative to the including file first, then each
// search path in order; unresolved headers keep the raw header text.
func (p *Parser) resolveInclude(header, sourceFile string, isSystem bool) string {
	if isSystem {
		return "<" + header + ">"
	}

	candidate := filepath.Join(filepath.Dir(sourceFile), header)
	if fileExists(candidate) {
		return candidate
	}

	for _, dir := range p.includePaths {
		candidate := filepath.Join(dir, header)
		if fileExists(candidate) {
			return candidate
		}
	}

	return header
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// StripComments removes /* */ blocks and // trailing text. String literals
// are not protected: a comment marker inside a string is stripped too, which
// is acceptable for the line-count and usage heuristics built on top.
func StripComments(content string) string {
	content = multiCommentPattern.ReplaceAllString(content, "")
	return singleCommentPattern.ReplaceAllString(content, "")
}

// Statistics aggregates parser output across a project scan.
func Statistics(analyses []*types.FileAnalysis) types.ScanStatistics {
	var stats types.ScanStatistics
	if len(analyses) == 0 {
		return stats
	}

	stats.TotalFiles = len(analyses)
	for _, a := range analyses {
		stats.TotalIncludes += len(a.Includes)
		stats.TotalLines += a.TotalLines
		stats.TotalCodeLines += a.CodeLines
		for _, inc := range a.Includes {
			if inc.IsSystem {
				stats.SystemIncludes++
			}
		}
		if a.HasTemplates {
			stats.FilesWithTemplates++
		}
		if a.HasMacros {
			stats.FilesWithMacros++
		}
	}
	stats.UserIncludes = stats.TotalIncludes - stats.SystemIncludes
	stats.AvgIncludesPerFile = float64(stats.TotalIncludes) / float64(stats.TotalFiles)
	stats.AvgLinesPerFile = float64(stats.TotalLines) / float64(stats.TotalFiles)

	return stats
}
