package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"

	"github.com/includeguard/includeguard/internal/config"
	"github.com/includeguard/includeguard/internal/engine"
	"github.com/includeguard/includeguard/internal/pch"
	"github.com/includeguard/includeguard/internal/version"
	"github.com/includeguard/includeguard/internal/watch"
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, err
	}

	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Scan.Exclude = append(cfg.Scan.Exclude, excludeFlags...)
	}
	if includePaths := c.StringSlice("include-path"); len(includePaths) > 0 {
		cfg.Scan.IncludePaths = append(cfg.Scan.IncludePaths, includePaths...)
	}
	if workers := c.Int("workers"); workers > 0 {
		cfg.Performance.Workers = workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	app := &cli.App{
		Name:                   "incguard",
		Usage:                  "Include cost analysis for C/C++ projects",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory to analyze (default: current directory)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns (e.g., --exclude '**/third_party/**')",
			},
			&cli.StringSliceFlag{
				Name:    "include-path",
				Aliases: []string{"I"},
				Usage:   "Additional header search directories for quoted includes",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Parallel parse workers (0 = number of CPUs)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only log errors",
			},
		},
		Before: func(c *cli.Context) error {
			switch {
			case c.Bool("verbose"):
				log.SetLevel(log.DebugLevel)
			case c.Bool("quiet"):
				log.SetLevel(log.ErrorLevel)
			default:
				log.SetLevel(log.WarnLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:    "analyze",
				Aliases: []string{"a"},
				Usage:   "Analyze include costs across the whole project",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "summary",
						Aliases: []string{"s"},
						Usage:   "Print only the project summary",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfigWithOverrides(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}

					result, err := engine.New(cfg).Analyze(c.Context)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}

					if c.Bool("summary") {
						return printJSON(result.Summary)
					}
					return printJSON(result)
				},
			},
			{
				Name:      "file",
				Aliases:   []string{"f"},
				Usage:     "Analyze a single file's includes",
				ArgsUsage: "<path>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("usage: incguard file <path>", 1)
					}
					path, err := filepath.Abs(c.Args().First())
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}

					cfg, err := loadConfigWithOverrides(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}

					report, forward, err := engine.New(cfg).AnalyzeFile(c.Context, path)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					return printJSON(map[string]any{
						"report":               report,
						"forward_declarations": forward,
					})
				},
			},
			{
				Name:    "graph",
				Aliases: []string{"g"},
				Usage:   "Show dependency graph statistics",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dot",
						Usage: "Emit the graph in Graphviz DOT format",
					},
					&cli.IntFlag{
						Name:  "max-nodes",
						Usage: "Restrict DOT output to project files past this node count",
						Value: 200,
					},
					&cli.BoolFlag{
						Name:  "cycles",
						Usage: "List include cycles",
					},
					&cli.IntFlag{
						Name:  "top",
						Usage: "Most included headers to list",
						Value: 10,
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfigWithOverrides(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}

					g, err := engine.New(cfg).Graph(c.Context)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}

					if c.Bool("dot") {
						return g.ExportDOT(os.Stdout, c.Int("max-nodes"))
					}
					if c.Bool("cycles") {
						return printJSON(map[string]any{"cycles": g.FindCycles()})
					}
					return printJSON(map[string]any{
						"stats":         g.Statistics(),
						"most_included": g.MostIncluded(c.Int("top")),
						"heaviest":      g.HeaviestFiles(c.Int("top")),
					})
				},
			},
			{
				Name:  "pch",
				Usage: "Recommend headers for a precompiled header",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "generate",
						Usage: "Print a ready-to-use pch.h instead of JSON",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfigWithOverrides(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}

					result, err := engine.New(cfg).Analyze(c.Context)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}

					if c.Bool("generate") {
						fmt.Print(pch.GeneratePCHFileContent(result.PCH))
						return nil
					}
					return printJSON(map[string]any{
						"recommendations": result.PCH,
						"benefit":         result.PCHBenefit,
					})
				},
			},
			{
				Name:  "fwd",
				Usage: "Find includes replaceable by forward declarations",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfigWithOverrides(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}

					result, err := engine.New(cfg).Analyze(c.Context)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					return printJSON(result.ForwardDecl)
				},
			},
			{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Re-run the analysis whenever source files change",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfigWithOverrides(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}

					eng := engine.New(cfg)

					ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
					defer stop()

					rerun := func(paths []string) {
						log.Infof("change detected in %d files, re-analyzing", len(paths))
						result, err := eng.Analyze(ctx)
						if err != nil {
							log.Errorf("analysis failed: %v", err)
							return
						}
						if err := printJSON(result.Summary); err != nil {
							log.Errorf("write summary: %v", err)
						}
					}

					w, err := watch.New(cfg, eng.Scanner(), rerun)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					if err := w.Start(ctx); err != nil {
						return cli.Exit(err.Error(), 1)
					}
					defer func() {
						if err := w.Stop(); err != nil {
							log.Warnf("stopping watcher: %v", err)
						}
					}()

					// Initial run before waiting for events.
					rerun(nil)

					<-ctx.Done()
					return nil
				},
			},
			{
				Name:  "version",
				Usage: "Print detailed version information",
				Action: func(c *cli.Context) error {
					fmt.Println(version.FullInfo())
					return nil
				},
			},
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
