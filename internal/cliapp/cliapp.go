// Package cliapp assembles the command-line surface over
// github.com/urfave/cli/v2: list, graph, plan, run, and plugin
// sub-commands, each sharing a -w/--workspace flag, grounded on the
// teacher's CLI dependency even though the teacher's own command
// wiring is bespoke around urfave/cli v1 (cli/cli_app.go); this module
// targets the pack's v2 release directly.
package cliapp

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/marty-build/marty/internal/config"
	"github.com/marty-build/marty/internal/discovery"
	"github.com/marty-build/marty/internal/merr"
	"github.com/marty-build/marty/internal/plugincache"
	"github.com/marty-build/marty/internal/pluginhost"
	"github.com/marty-build/marty/internal/taskresolver"
	"github.com/marty-build/marty/internal/taskrunner"
	"github.com/marty-build/marty/internal/workspace"
)

const workspaceFlagName = "workspace"

// New builds the marty *cli.App.
func New() *cli.App {
	app := &cli.App{
		Name:  "marty",
		Usage: "monorepo task orchestration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    workspaceFlagName,
				Aliases: []string{"w"},
				Value:   ".",
				Usage:   "workspace root",
			},
		},
		Commands: []*cli.Command{
			listCommand(),
			graphCommand(),
			planCommand(),
			runCommand(),
			pluginCommand(),
		},
	}

	return app
}

func workspaceRoot(c *cli.Context) string {
	return c.String(workspaceFlagName)
}

func loadWorkspace(ctx context.Context, root string) (*workspace.Workspace, error) {
	wsConfigPath := root + "/.marty/workspace.yml"

	wsConfig, err := config.LoadWorkspaceConfig(wsConfigPath)
	if err != nil {
		ioErr, ok := err.(*merr.IOError)
		if !ok || !os.IsNotExist(ioErr.Cause) {
			return nil, err
		}
		wsConfig = &config.WorkspaceConfig{}
	}

	cache, err := plugincache.New(root)
	if err != nil {
		return nil, err
	}

	cachedPlugins, err := cache.ResolveAll(ctx, wsConfig.Plugins)
	if err != nil {
		return nil, err
	}

	var handles []discovery.Plugin
	for _, cp := range cachedPlugins {
		handle, err := pluginhost.LoadViaTempCopy(cp.Path)
		if err != nil {
			return nil, err
		}
		handles = append(handles, handle)
	}

	result, err := discovery.Scan(root, handles, wsConfig.Includes, wsConfig.Excludes)
	if err != nil {
		return nil, err
	}

	return workspace.New(root, result.Projects, result.Inferred)
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "enumerate tracked (or inferred) projects",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "inferred"},
		},
		Action: func(c *cli.Context) error {
			ws, err := loadWorkspace(c.Context, workspaceRoot(c))
			if err != nil {
				return err
			}

			if c.Bool("inferred") {
				for _, p := range ws.InferredProjects {
					fmt.Fprintln(c.App.Writer, p.Name)
				}
				return nil
			}

			names := make([]string, len(ws.Projects))
			for i, p := range ws.Projects {
				names[i] = p.Name
			}
			sort.Strings(names)

			for _, n := range names {
				fmt.Fprintln(c.App.Writer, n)
			}

			return nil
		},
	}
}

func graphCommand() *cli.Command {
	return &cli.Command{
		Name:  "graph",
		Usage: "print projects with their outgoing edges, flagging cycles",
		Action: func(c *cli.Context) error {
			ws, err := loadWorkspace(c.Context, workspaceRoot(c))
			if err != nil {
				return err
			}

			if len(ws.Projects) == 0 {
				fmt.Fprintln(c.App.Writer, "no dependency graph available")
				return nil
			}

			names := make([]string, len(ws.Projects))
			for i, p := range ws.Projects {
				names[i] = p.Name
			}
			sort.Strings(names)

			for _, name := range names {
				fmt.Fprintf(c.App.Writer, "%s -> %v\n", name, ws.EffectiveDependencies(name))
			}

			for _, cycle := range ws.Cycles {
				fmt.Fprintf(c.App.Writer, "cycle: %v\n", cycle)
			}

			return nil
		},
	}
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "print the topological order of the compatible-project set for a task",
		ArgsUsage: "<target>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return &merr.ConfigError{Reason: "plan requires exactly one target argument"}
			}

			ws, err := loadWorkspace(c.Context, workspaceRoot(c))
			if err != nil {
				return err
			}

			tasks, err := config.LoadAllTasksFiles(workspaceRoot(c))
			if err != nil {
				return err
			}

			plan, err := taskresolver.Resolve(ws, tasks, taskresolver.ParseTarget(c.Args().First()))
			if err != nil {
				return err
			}

			for i, level := range plan.Levels {
				fmt.Fprintf(c.App.Writer, "level %d: %v\n", i, level)
			}

			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "execute the target's compatible projects level by level",
		ArgsUsage: "<target>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return &merr.ConfigError{Reason: "run requires exactly one target argument"}
			}

			ws, err := loadWorkspace(c.Context, workspaceRoot(c))
			if err != nil {
				return err
			}

			tasks, err := config.LoadAllTasksFiles(workspaceRoot(c))
			if err != nil {
				return err
			}

			plan, err := taskresolver.Resolve(ws, tasks, taskresolver.ParseTarget(c.Args().First()))
			if err != nil {
				return err
			}

			if err := taskrunner.Run(c.Context, ws, plan); err != nil {
				if exitErr, ok := err.(*merr.ExitError); ok {
					return cli.Exit(exitErr.Error(), 1)
				}
				return err
			}

			return nil
		},
	}
}

func pluginCommand() *cli.Command {
	return &cli.Command{
		Name:  "plugin",
		Usage: "inspect and manage the plugin cache",
		Subcommands: []*cli.Command{
			{
				Name: "list",
				Action: func(c *cli.Context) error {
					cache, err := plugincache.New(workspaceRoot(c))
					if err != nil {
						return err
					}

					files, err := cache.List()
					if err != nil {
						return err
					}

					names := make([]string, 0, len(files))
					for name := range files {
						names = append(names, name)
					}
					sort.Strings(names)

					for _, name := range names {
						fmt.Fprintln(c.App.Writer, name)
					}

					return nil
				},
			},
			{
				Name: "clear",
				Action: func(c *cli.Context) error {
					cache, err := plugincache.New(workspaceRoot(c))
					if err != nil {
						return err
					}
					return cache.Clear()
				},
			},
			{
				Name: "update",
				Action: func(c *cli.Context) error {
					root := workspaceRoot(c)

					cache, err := plugincache.New(root)
					if err != nil {
						return err
					}
					if err := cache.Clear(); err != nil {
						return err
					}

					wsConfig, err := config.LoadWorkspaceConfig(root + "/.marty/workspace.yml")
					if err != nil {
						return err
					}

					_, err = cache.ResolveAll(c.Context, wsConfig.Plugins)
					return err
				},
			},
		},
	}
}
