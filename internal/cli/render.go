// Package cli — render.go implements the "stackdock render" command.
//
// The render command writes the stack out as a Docker Compose document,
// for handing the same topology to compose-based tooling or for eyeball
// comparison against an existing compose file. Rendering is offline and
// read-only.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/stackdock/internal/model"
	"github.com/mmr-tortoise/stackdock/internal/stack"
)

// renderFlags holds the flag values for the render command.
type renderFlags struct {
	// output is the file to write to; "-" or empty means stdout.
	output string
}

// NewRenderCommand creates the "render" cobra command.
func NewRenderCommand() *cobra.Command {
	flags := &renderFlags{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the stack as a Docker Compose file",
		Long: `Render the stack descriptor as an equivalent Docker Compose document.

The stack is validated first; a descriptor that would not deploy is not
rendered. Output goes to stdout unless -o names a file.

Examples:
  stackdock render
  stackdock render -o docker-compose.yml`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write to file instead of stdout")

	return cmd
}

// runRender is the main logic function for the render command.
func runRender(flags *renderFlags) error {
	settings, err := resolveSettings()
	if err != nil {
		return err
	}

	s, err := loadStack(settings)
	if err != nil {
		return err
	}
	if err := validateStack(s); err != nil {
		return err
	}

	rendered, err := stack.Render(s)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to render stack %q", s.Name), err)
	}

	if flags.output == "" || flags.output == "-" {
		fmt.Print(string(rendered))
		return nil
	}

	if err := os.WriteFile(flags.output, rendered, 0o644); err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to write %s", flags.output), err)
	}
	VerboseLog("Wrote %s (%d bytes)", flags.output, len(rendered))
	return nil
}
