package recipe

import (
	"fmt"
	"strconv"
	"strings"
)

// StartCommand is the process a container built from a recipe runs at
// start, with the flags that matter for the deployment contract pulled
// out of the argv.
type StartCommand struct {
	// Executable is the program name, argv[0].
	Executable string

	// Args is the full argv including the executable.
	Args []string

	// AppTarget is the application entry argument, e.g. "main:app" for
	// a WSGI/ASGI server. Empty when the command has no positional
	// non-flag argument.
	AppTarget string

	// Workers is the -w/--workers count. Zero when unset.
	Workers int

	// WorkerClass is the -k/--worker-class value.
	WorkerClass string

	// BindHost and BindPort come from -b/--bind host:port.
	// BindPort is zero when no bind flag is present.
	BindHost string
	BindPort int

	// LogLevel is the --log-level value.
	LogLevel string

	// Timeout is the --timeout value in seconds. Zero when unset.
	Timeout int
}

// StartCommand resolves the recipe's start command. ENTRYPOINT provides
// the leading argv and CMD appends to it; a shell-form CMD replaces any
// exec-form ENTRYPOINT semantics by running under the shell, so it is
// tokenized on its own.
func (r *Recipe) StartCommand() (*StartCommand, error) {
	var argv []string
	argv = append(argv, r.Entrypoint...)

	if r.CmdShellForm && len(r.Cmd) == 1 {
		argv = append(argv, shellSplit(r.Cmd[0])...)
	} else {
		argv = append(argv, r.Cmd...)
	}

	if len(argv) == 0 {
		return nil, fmt.Errorf("recipe has no CMD or ENTRYPOINT")
	}

	sc := &StartCommand{
		Executable: argv[0],
		Args:       argv,
	}

	for i := 1; i < len(argv); i++ {
		arg := argv[i]

		// --flag=value form.
		flag, inline, hasInline := strings.Cut(arg, "=")
		value := func() string {
			if hasInline {
				return inline
			}
			if i+1 < len(argv) {
				i++
				return argv[i]
			}
			return ""
		}

		switch flag {
		case "-w", "--workers":
			n, err := strconv.Atoi(value())
			if err != nil {
				return nil, fmt.Errorf("invalid worker count in start command: %w", err)
			}
			sc.Workers = n
		case "-k", "--worker-class":
			sc.WorkerClass = value()
		case "-b", "--bind":
			host, port, err := splitBind(value())
			if err != nil {
				return nil, err
			}
			sc.BindHost = host
			sc.BindPort = port
		case "--log-level":
			sc.LogLevel = value()
		case "--timeout", "-t":
			n, err := strconv.Atoi(value())
			if err != nil {
				return nil, fmt.Errorf("invalid timeout in start command: %w", err)
			}
			sc.Timeout = n
		default:
			if !strings.HasPrefix(arg, "-") && sc.AppTarget == "" {
				sc.AppTarget = arg
			}
		}
	}

	return sc, nil
}

// splitBind parses a bind address "host:port" or bare "port".
func splitBind(spec string) (string, int, error) {
	host := ""
	portSpec := spec
	if idx := strings.LastIndex(spec, ":"); idx >= 0 {
		host = spec[:idx]
		portSpec = spec[idx+1:]
	}
	port, err := strconv.Atoi(portSpec)
	if err != nil {
		return "", 0, fmt.Errorf("invalid bind address %q in start command", spec)
	}
	return host, port, nil
}

// shellSplit tokenizes a shell-form command line. Single and double
// quotes group words; no expansion or escaping beyond that is done,
// which covers the command lines recipes actually carry.
func shellSplit(line string) []string {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inWord  bool
	)

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		args = append(args, current.String())
	}

	return args
}
