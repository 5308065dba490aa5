// Package cli implements the cobra-based CLI commands for stackdock.
//
// Each subcommand (up, down, start, stop, ps, check, render) is defined
// in its own file within this package. This file defines the root
// command that serves as the parent for all subcommands and handles
// global flags.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/stackdock/internal/model"
)

// Global flag variables shared across all subcommands. They are bound
// to cobra persistent flags on the root command, which makes them
// available to every subcommand automatically.
var (
	// jsonOutput switches command output to JSON for machine consumption.
	jsonOutput bool

	// verbose enables detailed logging to stderr.
	verbose bool

	// descriptorFile is the stack descriptor path from -f/--file. Empty
	// means discovery in the working directory.
	descriptorFile string

	// projectOverride replaces the descriptor's stack name.
	projectOverride string

	// settingsFile is an explicit tool settings file from --config.
	settingsFile string

	// dockerHost overrides Docker socket detection.
	dockerHost string
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself does not perform any action — it only
// provides help text and global flags. Actual functionality lives in
// the subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stackdock",
		Short: "Declarative multi-container stack deployment",
		Long: `stackdock deploys multi-container stacks from a declarative descriptor
(stackdock.yaml or stackdock.json). It validates the descriptor and its
build recipes, orders units by their startup dependencies, checks host
ports before binding them, and drives the Docker Engine to run the stack.

Deployed state lives entirely in Docker labels; there is no state file.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	// PersistentFlags are inherited by all subcommands.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&descriptorFile, "file", "f", "", "Stack descriptor file (default: discover stackdock.yaml/.yml/.json)")
	rootCmd.PersistentFlags().StringVarP(&projectOverride, "project", "p", "", "Override the stack name from the descriptor")
	rootCmd.PersistentFlags().StringVar(&settingsFile, "config", "", "Tool settings file (default: .stackdock.yaml in . or $HOME)")
	rootCmd.PersistentFlags().StringVar(&dockerHost, "docker-host", "", "Docker daemon address (default: DOCKER_HOST or socket detection)")

	rootCmd.AddCommand(NewUpCommand())
	rootCmd.AddCommand(NewDownCommand())
	rootCmd.AddCommand(NewStartCommand())
	rootCmd.AddCommand(NewStopCommand())
	rootCmd.AddCommand(NewPsCommand())
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewRenderCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// It inspects errors returned by cobra commands and translates them
// into OS exit codes. CLIError types carry their own exit codes; other
// errors default to exit code 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		// A type assertion suffices for this single-level check;
		// command code returns CLIErrors unwrapped.
		if cliErr, ok := err.(*model.CLIError); ok {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode; stdout is reserved for
		// successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// VerboseLog prints a message to stderr only when verbose mode is
// enabled. Used throughout the CLI for trace output about what
// operations are being performed.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
