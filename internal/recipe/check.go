package recipe

import (
	"fmt"
	"strings"
)

// Finding is one result of checking a recipe against its unit's
// deployment contract.
type Finding struct {
	// Path is the recipe file the finding concerns.
	Path string

	// Message describes the problem.
	Message string

	// Warning marks advisory findings that do not fail the check.
	Warning bool
}

func (f Finding) String() string {
	level := "error"
	if f.Warning {
		level = "warning"
	}
	return fmt.Sprintf("%s: %s: %s", level, f.Path, f.Message)
}

// HasErrors reports whether any finding is an error rather than a warning.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if !f.Warning {
			return true
		}
	}
	return false
}

// knownExecutables are program names commonly seen as container start
// commands. A start executable near one of these, but not equal to it,
// is almost certainly a typo that surfaces only at container start as
// "command not found".
var knownExecutables = []string{
	"gunicorn",
	"uvicorn",
	"python",
	"python3",
	"node",
	"npm",
	"nginx",
	"mongod",
	"redis-server",
	"flask",
	"celery",
	"sh",
	"bash",
	"java",
}

// Check verifies a recipe's internal consistency: the start command must
// reference a plausible executable, its bind port must agree with the
// EXPOSE declaration, and its tuning flags must hold sane values.
// Defects are reported, never corrected.
func Check(r *Recipe) []Finding {
	var findings []Finding

	add := func(warning bool, format string, args ...any) {
		findings = append(findings, Finding{
			Path:    r.Path,
			Message: fmt.Sprintf(format, args...),
			Warning: warning,
		})
	}

	sc, err := r.StartCommand()
	if err != nil {
		add(false, "%v", err)
		return findings
	}

	findings = append(findings, checkExecutable(r, sc)...)

	// EXPOSE and the bind flag must name the same port, or traffic
	// forwarded to the declared port never reaches the server.
	if sc.BindPort != 0 {
		if len(r.Exposed) == 0 {
			add(true, "start command binds port %d but the recipe declares no EXPOSE", sc.BindPort)
		} else if !exposes(r, sc.BindPort) {
			add(false, "start command binds port %d but the recipe exposes %s",
				sc.BindPort, exposedList(r))
		}
	}

	if sc.Workers < 0 {
		add(false, "worker count %d is negative", sc.Workers)
	}
	if hasFlag(sc.Args, "-w", "--workers") && sc.Workers == 0 {
		add(false, "worker count must be at least 1")
	}
	if hasFlag(sc.Args, "--timeout", "-t") && sc.Timeout <= 0 {
		add(false, "timeout must be a positive number of seconds")
	}

	return findings
}

// checkExecutable validates the start command's argv[0]. An executable
// that is neither known nor installed by the recipe fails; one within
// edit distance 2 of a known name is reported as a probable
// misspelling, since the container would die at start with
// "command not found".
func checkExecutable(r *Recipe, sc *StartCommand) []Finding {
	exe := baseName(sc.Executable)

	if isKnown(exe) || installed(r, exe) {
		return nil
	}

	if nearest, dist := nearestKnown(exe); dist > 0 && dist <= 2 {
		return []Finding{{
			Path: r.Path,
			Message: fmt.Sprintf(
				"start command executable %q looks like a misspelling of %q; the container would fail at start with \"command not found\"",
				exe, nearest,
			),
		}}
	}

	return []Finding{{
		Path:    r.Path,
		Message: fmt.Sprintf("start command executable %q is not a known server and is not installed by the recipe", exe),
		Warning: true,
	}}
}

func isKnown(exe string) bool {
	for _, k := range knownExecutables {
		if exe == k {
			return true
		}
	}
	return false
}

// installed reports whether the recipe's RUN lines install a package of
// the same name as the executable.
func installed(r *Recipe, exe string) bool {
	for _, pkg := range r.Installed {
		if strings.EqualFold(pkg, exe) {
			return true
		}
	}
	return false
}

// nearestKnown returns the known executable closest to exe by edit
// distance, and that distance.
func nearestKnown(exe string) (string, int) {
	best := ""
	bestDist := -1
	for _, k := range knownExecutables {
		d := editDistance(exe, k)
		if bestDist < 0 || d < bestDist {
			best, bestDist = k, d
		}
	}
	return best, bestDist
}

// editDistance is the Levenshtein distance between a and b.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func exposes(r *Recipe, port int) bool {
	for _, p := range r.Exposed {
		if p.ContainerPort == port {
			return true
		}
	}
	return false
}

func exposedList(r *Recipe) string {
	var parts []string
	for _, p := range r.Exposed {
		parts = append(parts, fmt.Sprintf("%d", p.ContainerPort))
	}
	return strings.Join(parts, ", ")
}

func hasFlag(argv []string, names ...string) bool {
	for _, arg := range argv {
		flag, _, _ := strings.Cut(arg, "=")
		for _, n := range names {
			if flag == n {
				return true
			}
		}
	}
	return false
}

func baseName(exe string) string {
	if idx := strings.LastIndex(exe, "/"); idx >= 0 {
		return exe[idx+1:]
	}
	return exe
}
