package recipe

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

// Recipe is the parsed form of one build recipe file.
type Recipe struct {
	// Path is the file the recipe was read from.
	Path string

	// From is the base image reference of the final stage.
	From string

	// Exposed lists the ports declared by EXPOSE instructions, in order.
	Exposed []model.PortMapping

	// Env holds ENV-declared variables in declaration order.
	Env []model.EnvVar

	// WorkDir is the last WORKDIR value, if any.
	WorkDir string

	// Cmd is the CMD instruction's argv. For shell-form CMD the single
	// element holds the whole shell command line.
	Cmd []string

	// CmdShellForm records whether Cmd came from the shell form
	// (CMD gunicorn ...) rather than the exec form (CMD ["gunicorn", ...]).
	CmdShellForm bool

	// Entrypoint is the ENTRYPOINT argv, parsed like Cmd.
	Entrypoint []string

	// Installed lists package names mentioned by pip/apt install RUN
	// lines. Used to decide which executables the image plausibly ships.
	Installed []string

	// Instructions preserves every instruction as (keyword, arguments)
	// in file order, including ones this package does not interpret.
	Instructions []Instruction
}

// Instruction is one raw recipe instruction.
type Instruction struct {
	Keyword string
	Args    string
}

// Load reads and parses a recipe file.
// Returns a CLIError with ExitRecipeError if the file cannot be read.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitRecipeError,
			fmt.Sprintf("cannot read build recipe %s", path),
			err,
		)
	}

	r, err := Parse(data)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitRecipeError,
			fmt.Sprintf("cannot parse build recipe %s", path),
			err,
		)
	}
	r.Path = path
	return r, nil
}

// Parse parses recipe bytes. The format is line-oriented: comments start
// with '#', a trailing backslash continues the logical line, and the
// first word of each logical line is the instruction keyword.
func Parse(data []byte) (*Recipe, error) {
	r := &Recipe{}

	for _, line := range logicalLines(string(data)) {
		keyword, args, found := strings.Cut(line, " ")
		if !found {
			keyword = line
		}
		keyword = strings.ToUpper(strings.TrimSpace(keyword))
		args = strings.TrimSpace(args)

		r.Instructions = append(r.Instructions, Instruction{Keyword: keyword, Args: args})

		switch keyword {
		case "FROM":
			// Multi-stage builds: the final FROM wins. Stage aliases
			// ("AS builder") are stripped.
			base, _, _ := strings.Cut(args, " ")
			r.From = base
		case "EXPOSE":
			ports, err := parseExpose(args)
			if err != nil {
				return nil, err
			}
			r.Exposed = append(r.Exposed, ports...)
		case "ENV":
			r.Env = append(r.Env, parseEnv(args)...)
		case "WORKDIR":
			r.WorkDir = args
		case "CMD":
			argv, shell, err := parseCommand(args)
			if err != nil {
				return nil, fmt.Errorf("CMD: %w", err)
			}
			r.Cmd = argv
			r.CmdShellForm = shell
		case "ENTRYPOINT":
			argv, _, err := parseCommand(args)
			if err != nil {
				return nil, fmt.Errorf("ENTRYPOINT: %w", err)
			}
			r.Entrypoint = argv
		case "RUN":
			r.Installed = append(r.Installed, installedPackages(args)...)
		}
	}

	return r, nil
}

// logicalLines splits recipe text into logical lines, folding
// backslash continuations and dropping blank lines and comments.
func logicalLines(text string) []string {
	var lines []string
	var pending strings.Builder

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasSuffix(line, "\\") {
			pending.WriteString(strings.TrimSuffix(line, "\\"))
			pending.WriteString(" ")
			continue
		}

		pending.WriteString(line)
		lines = append(lines, pending.String())
		pending.Reset()
	}

	// A trailing continuation with no final line still counts.
	if pending.Len() > 0 {
		lines = append(lines, strings.TrimSpace(pending.String()))
	}

	return lines
}

// parseExpose parses EXPOSE arguments: one or more "port[/proto]" tokens.
// EXPOSE declares container ports only, so HostPort mirrors
// ContainerPort purely for PortMapping reuse.
func parseExpose(args string) ([]model.PortMapping, error) {
	var ports []model.PortMapping
	for _, tok := range strings.Fields(args) {
		spec := tok
		proto := "tcp"
		if base, p, found := strings.Cut(spec, "/"); found {
			spec = base
			proto = strings.ToLower(p)
		}
		n, err := strconv.Atoi(spec)
		if err != nil {
			return nil, fmt.Errorf("EXPOSE: invalid port %q: %w", tok, err)
		}
		pm := model.PortMapping{HostPort: n, ContainerPort: n, Protocol: proto}
		if err := pm.Validate(); err != nil {
			return nil, fmt.Errorf("EXPOSE: %w", err)
		}
		ports = append(ports, pm)
	}
	return ports, nil
}

// parseEnv parses ENV arguments. Both forms are accepted:
//
//	ENV KEY=value OTHER=value
//	ENV KEY value with spaces
func parseEnv(args string) []model.EnvVar {
	if !strings.Contains(firstField(args), "=") {
		key, value, _ := strings.Cut(args, " ")
		return []model.EnvVar{{Key: key, Value: strings.TrimSpace(value)}}
	}

	var vars []model.EnvVar
	for _, tok := range strings.Fields(args) {
		key, value, found := strings.Cut(tok, "=")
		if !found {
			continue
		}
		vars = append(vars, model.EnvVar{Key: key, Value: strings.Trim(value, `"`)})
	}
	return vars
}

// firstField returns the first whitespace-delimited token of s.
func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// parseCommand parses a CMD or ENTRYPOINT argument. The exec form is a
// JSON array (JSONC-tolerant, matching the rest of the tool's config
// parsing); anything else is the shell form, kept as one element.
func parseCommand(args string) (argv []string, shellForm bool, err error) {
	trimmed := strings.TrimSpace(args)
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if jsonErr := jsonUnmarshalList(trimmed, &list); jsonErr != nil {
			return nil, false, fmt.Errorf("invalid exec-form array %q: %w", args, jsonErr)
		}
		return list, false, nil
	}
	if trimmed == "" {
		return nil, false, nil
	}
	return []string{trimmed}, true, nil
}

// jsonUnmarshalList decodes a JSON string array, tolerating comments and
// trailing commas via the jsonc preprocessor.
func jsonUnmarshalList(s string, out *[]string) error {
	return json.Unmarshal(jsonc.ToJSON([]byte(s)), out)
}

// installedPackages extracts package names from pip/pip3/apt/apt-get/apk
// install invocations inside a RUN line. Flags and version pins are
// stripped; requirement-file installs contribute nothing (the file's
// contents are outside the recipe).
func installedPackages(run string) []string {
	var pkgs []string

	// A RUN line may chain several commands with && or ';'.
	for _, cmd := range splitAny(run, "&&", ";") {
		fields := strings.Fields(cmd)
		idx := installIndex(fields)
		if idx < 0 {
			continue
		}

		skipNext := false
		for _, f := range fields[idx+1:] {
			if skipNext {
				skipNext = false
				continue
			}
			if f == "-r" || f == "--requirement" {
				skipNext = true
				continue
			}
			if strings.HasPrefix(f, "-") {
				continue
			}
			// Strip version pins: gunicorn==21.2.0 → gunicorn.
			name := f
			for _, sep := range []string{"==", ">=", "<=", "~=", "="} {
				if base, _, found := strings.Cut(name, sep); found {
					name = base
					break
				}
			}
			// Extras markers: uvicorn[standard] → uvicorn.
			if base, _, found := strings.Cut(name, "["); found {
				name = base
			}
			if name != "" {
				pkgs = append(pkgs, name)
			}
		}
	}

	return pkgs
}

// installIndex locates the package list start in an install command:
// the token after "install" for pip/pip3/apt/apt-get/apk variants.
// Returns -1 when the command is not an install.
func installIndex(fields []string) int {
	for i, f := range fields {
		base := f
		if idx := strings.LastIndex(base, "/"); idx >= 0 {
			base = base[idx+1:]
		}
		switch base {
		case "pip", "pip3", "apt", "apt-get", "apk":
			// The next occurrence of "install"/"add" starts the list.
			for j := i + 1; j < len(fields); j++ {
				if fields[j] == "install" || (base == "apk" && fields[j] == "add") {
					return j
				}
			}
			return -1
		}
	}
	return -1
}

// splitAny splits s on any of the separators, trimming whitespace.
func splitAny(s string, seps ...string) []string {
	parts := []string{s}
	for _, sep := range seps {
		var next []string
		for _, p := range parts {
			next = append(next, strings.Split(p, sep)...)
		}
		parts = next
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
