package fwddecl

import (
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/includeguard/includeguard/internal/types"
)

// MinConfidence is the acceptance threshold below which an opportunity is
// not reported.
const MinConfidence = 0.5

// Detector finds includes that can be replaced with forward declarations:
// headers whose type is only ever used through pointers or references, so
// the including file never needs the type's size or members.
//
// The detector is a stateless transform over a FileAnalysis plus the raw
// file text, re-read on demand.
type Detector struct {
	pointerPatterns    []*regexp.Regexp
	definitionPatterns []*regexp.Regexp
}

// multiSymbolHints mark headers that likely declare many types; forward
// declaring "the" type of such a header is unreliable.
var multiSymbolHints = []string{"util", "common", "helper", "types"}

// New creates a detector with the built-in usage patterns.
func New() *Detector {
	return &Detector{
		// Pointer or reference usage: forward declaration suffices.
		pointerPatterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(\w+)\s*\*`),            // Type* ptr
			regexp.MustCompile(`\b(\w+)\s*&`),             // Type& ref
			regexp.MustCompile(`<\s*(\w+)\s*\*\s*>`),      // vector<Type*>
			regexp.MustCompile(`unique_ptr\s*<\s*(\w+)`),  // unique_ptr<Type>
			regexp.MustCompile(`shared_ptr\s*<\s*(\w+)`),  // shared_ptr<Type>
			regexp.MustCompile(`weak_ptr\s*<\s*(\w+)`),    // weak_ptr<Type>
		},
		// Full definition needed: forward declaration is not enough.
		definitionPatterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(\w+)\s+\w+\s*;`),       // Type var; on the stack
			regexp.MustCompile(`sizeof\s*\(\s*(\w+)`),     // sizeof(Type)
			regexp.MustCompile(`new\s+(\w+)\s*[({]`),      // new Type(...) / new Type{...}
			regexp.MustCompile(`\b(\w+)\s+\w+\s*[({]`),    // Type obj(args) / Type obj{args}
		},
	}
}

// FindOpportunities scans a file's user includes for ones whose inferred
// type is used only through pointers or references. Unreadable files yield
// no opportunities.
func (d *Detector) FindOpportunities(path string, analysis *types.FileAnalysis) []types.ForwardDeclOpportunity {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	content := stripCommentsAndStrings(string(data))

	var opportunities []types.ForwardDeclOpportunity

	for _, inc := range analysis.Includes {
		// System headers cannot be forward declared.
		if inc.IsSystem {
			continue
		}
		if isMultiSymbolHeader(inc.Header) {
			continue
		}

		className := ClassNameFromHeader(inc.Header)
		if className == "" {
			continue
		}
		if !strings.Contains(content, className) {
			continue
		}

		pointerOnly := d.matchCount(d.pointerPatterns, content, className) > 0
		needsDefinition := d.matchCount(d.definitionPatterns, content, className) > 0

		if !pointerOnly || needsDefinition {
			continue
		}

		confidence := d.confidence(content, className)
		if confidence < MinConfidence {
			continue
		}

		opportunities = append(opportunities, types.ForwardDeclOpportunity{
			Header:     inc.Header,
			ClassName:  className,
			Line:       inc.LineNumber,
			Confidence: confidence,
			Suggestion: "class " + className + ";",
		})
	}

	return opportunities
}

// ClassNameFromHeader infers the likely class name declared by a header:
// the base filename, minus _impl/_fwd suffixes, with snake or kebab case
// converted to a single capitalized identifier.
func ClassNameFromHeader(header string) string {
	name := strings.TrimSuffix(filepath.Base(header), filepath.Ext(header))
	name = strings.ReplaceAll(name, "_impl", "")
	name = strings.ReplaceAll(name, "_fwd", "")
	if name == "" {
		return ""
	}

	if strings.ContainsAny(name, "_-") {
		parts := strings.FieldsFunc(name, func(r rune) bool {
			return r == '_' || r == '-'
		})
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(strings.ToUpper(p[:1]))
			b.WriteString(p[1:])
		}
		return b.String()
	}

	return strings.ToUpper(name[:1]) + name[1:]
}

// matchCount counts pattern matches whose captured identifier contains the
// class name.
func (d *Detector) matchCount(patterns []*regexp.Regexp, content, className string) int {
	count := 0
	for _, pattern := range patterns {
		for _, match := range pattern.FindAllStringSubmatch(content, -1) {
			if len(match) > 1 && strings.Contains(match[1], className) {
				count++
			}
		}
	}
	return count
}

// confidence scores an opportunity: pointer evidence raises it, definition
// evidence lowers it, a Type*/Type& signature raises it slightly.
// Clamped to [0, 1].
func (d *Detector) confidence(content, className string) float64 {
	confidence := 0.6

	pointerCount := d.matchCount(d.pointerPatterns, content, className)
	confidence += math.Min(float64(pointerCount)*0.1, 0.3)

	definitionCount := d.matchCount(d.definitionPatterns, content, className)
	confidence -= math.Min(float64(definitionCount)*0.15, 0.4)

	sigPattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(className) + `\s*[*&]`)
	if sigPattern.MatchString(content) {
		confidence += 0.1
	}

	return math.Max(0.0, math.Min(1.0, confidence))
}

func isMultiSymbolHeader(header string) bool {
	headerLower := strings.ToLower(header)
	for _, hint := range multiSymbolHints {
		if strings.Contains(headerLower, hint) {
			return true
		}
	}
	return false
}

var (
	lineCommentPattern  = regexp.MustCompile(`(?m)//.*$`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
	dquoteStringPattern = regexp.MustCompile(`"[^"]*"`)
	squoteStringPattern = regexp.MustCompile(`'[^']*'`)
)

// stripCommentsAndStrings removes comments and string literals so type
// names inside them never count as usage evidence.
func stripCommentsAndStrings(content string) string {
	content = lineCommentPattern.ReplaceAllString(content, "")
	content = blockCommentPattern.ReplaceAllString(content, "")
	content = dquoteStringPattern.ReplaceAllString(content, `""`)
	content = squoteStringPattern.ReplaceAllString(content, "''")
	return content
}
