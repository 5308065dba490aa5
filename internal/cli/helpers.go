// Package cli — helpers.go holds the plumbing shared by subcommands:
// settings resolution, descriptor loading, validation reporting, and
// recipe checking.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmr-tortoise/stackdock/internal/config"
	"github.com/mmr-tortoise/stackdock/internal/docker"
	"github.com/mmr-tortoise/stackdock/internal/model"
	"github.com/mmr-tortoise/stackdock/internal/recipe"
	"github.com/mmr-tortoise/stackdock/internal/stack"
)

// resolveSettings loads the tool settings and applies command-line
// overrides on top. Flags always win over the settings file and
// environment.
func resolveSettings() (*config.Settings, error) {
	settings, err := config.Load(settingsFile)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to load settings", err)
	}

	if descriptorFile != "" {
		settings.File = descriptorFile
	}
	if projectOverride != "" {
		settings.Project = projectOverride
	}
	if dockerHost != "" {
		settings.DockerHost = dockerHost
	}

	return settings, nil
}

// loadStack locates and loads the stack descriptor according to the
// resolved settings. With no explicit file, the standard names are
// probed in the working directory.
func loadStack(settings *config.Settings) (*model.Stack, error) {
	path := settings.File
	if path == "" {
		found, err := stack.FindDescriptor(".")
		if err != nil {
			return nil, err
		}
		path = found
	}

	VerboseLog("Loading stack descriptor %s", path)

	s, err := stack.LoadProject(path, settings.Project)
	if err != nil {
		return nil, err
	}

	VerboseLog("Loaded stack %q with %d units", s.Name, len(s.Units))
	return s, nil
}

// validateStack runs descriptor validation, prints warnings to stderr,
// and converts errors into a CLIError with ExitValidationFailed.
func validateStack(s *model.Stack) error {
	findings := stack.Validate(s)

	var errLines []string
	for _, f := range findings {
		if f.Warning {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", f.Error())
			continue
		}
		errLines = append(errLines, f.Error())
	}

	if len(errLines) > 0 {
		return model.NewCLIError(
			model.ExitValidationFailed,
			fmt.Sprintf("stack %q failed validation:\n%s", s.Name, strings.Join(errLines, "\n")),
		)
	}
	return nil
}

// checkRecipes loads and checks the build recipe of every built unit.
// Units deployed from pre-built images have no recipe and are skipped.
func checkRecipes(s *model.Stack) ([]recipe.Finding, error) {
	baseDir := filepath.Dir(s.SourcePath)

	var findings []recipe.Finding
	for _, name := range s.UnitNames() {
		unit := s.Units[name]
		if unit.Build == nil {
			continue
		}

		path := filepath.Join(baseDir, unit.Build.Context, unit.Build.Recipe)
		VerboseLog("Checking build recipe %s for unit %q", path, name)

		r, err := recipe.Load(path)
		if err != nil {
			return nil, err
		}
		findings = append(findings, recipe.Check(r)...)
	}

	return findings, nil
}

// requireCleanRecipes fails with ExitRecipeError when any recipe check
// produced an error-level finding. Warnings are printed and tolerated.
func requireCleanRecipes(s *model.Stack) error {
	findings, err := checkRecipes(s)
	if err != nil {
		return err
	}

	var errLines []string
	for _, f := range findings {
		if f.Warning {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", f.String())
			continue
		}
		errLines = append(errLines, f.String())
	}

	if len(errLines) > 0 {
		return model.NewCLIError(
			model.ExitRecipeError,
			fmt.Sprintf("build recipe check failed:\n%s", strings.Join(errLines, "\n")),
		)
	}
	return nil
}

// connectDocker opens a Docker client per the settings and verifies the
// daemon responds before any operation relies on it.
func connectDocker(ctx context.Context, settings *config.Settings) (*docker.Client, error) {
	cli, err := docker.NewClient(settings.DockerHost)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, err
	}

	VerboseLog("Connected to Docker daemon")
	return cli, nil
}

// printActionResult outputs the outcome of a lifecycle command that
// touched n containers, in text or JSON per the --json flag.
func printActionResult(stackName, action string, n int) {
	if IsJSONOutput() {
		result := struct {
			Stack      string `json:"stack"`
			Action     string `json:"action"`
			Containers int    `json:"containers"`
		}{stackName, action, n}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}
	fmt.Printf("Stack %q %s (%d containers)\n", stackName, action, n)
}

// filterUnits narrows an ordered unit list down to the units named on
// the command line. An empty selection keeps the full list; a name not
// declared in the stack fails with ExitStackNotFound. Relative order is
// preserved, so dependency ordering survives the filter.
func filterUnits(s *model.Stack, order, selected []string) ([]string, error) {
	if len(selected) == 0 {
		return order, nil
	}

	want := make(map[string]bool, len(selected))
	for _, name := range selected {
		if _, ok := s.Units[name]; !ok {
			return nil, model.NewCLIError(
				model.ExitStackNotFound,
				fmt.Sprintf("unit %q is not declared in stack %q", name, s.Name),
			)
		}
		want[name] = true
	}

	filtered := make([]string, 0, len(selected))
	for _, name := range order {
		if want[name] {
			filtered = append(filtered, name)
		}
	}
	return filtered, nil
}

// stackContainers lists the managed containers of one stack, failing
// with ExitStackNotFound when none exist.
func stackContainers(ctx context.Context, cli *docker.Client, project string) ([]model.ContainerInfo, error) {
	containers, err := docker.ListManagedContainers(ctx, cli, project)
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		return nil, model.NewCLIError(
			model.ExitStackNotFound,
			fmt.Sprintf("no deployed stack named %q found", project),
		)
	}
	return containers, nil
}
