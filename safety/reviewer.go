// Package safety implements the pre-execution code review gate: the sole
// defense against unsafe code in a configuration with no runtime sandbox.
package safety

import (
	"regexp"
	"strings"

	"github.com/agent0/coevolve/core"
)

var dangerousImports = []string{
	"os", "subprocess", "sys", "socket", "shutil", "ctypes", "multiprocessing",
}

var dangerousBuiltins = []string{
	"eval", "exec", "compile", "__import__", "open",
}

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)rm\s+-rf`),
	regexp.MustCompile(`(?i)del\s+/`),
	regexp.MustCompile(`(?i)format\s+[a-z]:`),
	regexp.MustCompile(`\.\.[\\/]`),
	regexp.MustCompile(`(?i)registry`),
}

var importLine = regexp.MustCompile(`(?m)^\s*(?:import|from)\s+([A-Za-z_][A-Za-z0-9_.]*)`)
var builtinCall = regexp.MustCompile(`\b([A-Za-z_]+)\s*\(`)
var envAccess = regexp.MustCompile(`os\.environ`)

// Reviewer is a pure, stateless implementation of core.CodeReviewer.
type Reviewer struct{}

// NewReviewer builds the reviewer. It carries no configuration: the
// dangerous-import, builtin, and pattern lists are fixed by spec.
func NewReviewer() *Reviewer {
	return &Reviewer{}
}

// Review inspects code and returns the verdict. It never mutates code and
// never executes it.
func (r *Reviewer) Review(code string) core.ReviewResult {
	var issues, warnings []string

	for _, m := range importLine.FindAllStringSubmatch(code, -1) {
		root := strings.SplitN(m[1], ".", 2)[0]
		if isDangerousImport(root) {
			issues = append(issues, "dangerous import: "+m[1])
		}
	}

	for _, m := range builtinCall.FindAllStringSubmatch(code, -1) {
		name := m[1]
		if isDangerousBuiltin(name) {
			issues = append(issues, "dangerous call: "+name)
		}
	}

	for _, pat := range dangerousPatterns {
		if pat.MatchString(code) {
			issues = append(issues, "dangerous pattern: "+pat.String())
		}
	}

	if envAccess.MatchString(code) {
		warnings = append(warnings, "environment access via os.environ")
	}

	return core.ReviewResult{
		Safe:     len(issues) == 0,
		Issues:   issues,
		Warnings: warnings,
	}
}

func isDangerousImport(root string) bool {
	if strings.HasPrefix(root, "win32") {
		return true
	}
	for _, d := range dangerousImports {
		if root == d {
			return true
		}
	}
	return false
}

func isDangerousBuiltin(name string) bool {
	for _, d := range dangerousBuiltins {
		if name == d {
			return true
		}
	}
	return false
}

var _ core.CodeReviewer = (*Reviewer)(nil)
