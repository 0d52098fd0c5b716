package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotsetgreg/dotpersona/pkg/config"
	"github.com/dotsetgreg/dotpersona/pkg/logger"
	"github.com/dotsetgreg/dotpersona/pkg/reengage"
)

func executeCLI() error {
	root := buildRootCommand(true)
	if err := root.Execute(); err != nil {
		return err
	}
	return nil
}

func buildRootCommand(includeDocsCommand bool) *cobra.Command {
	var (
		showVersion bool
		configPath  string
	)

	root := &cobra.Command{
		Use:   appName,
		Short: "Persona conversation decision engine: energy, routing, engagement and re-engagement",
		Long: strings.TrimSpace(`dotpersona decides how a persona should answer each user message.

It reads the message's emotional energy, routes it to one of ten response
paths, tracks engagement and conversational loops, and injects a fresh
topic when a conversation stalls. Text generation is left to the caller.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(cmd.OutOrStdout())
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config.json")

	root.AddCommand(newChatCommand(&configPath))
	root.AddCommand(newServeCommand(&configPath))
	root.AddCommand(newTopicsCommand(&configPath))
	root.AddCommand(newStatusCommand(&configPath))
	root.AddCommand(newVersionCommand())

	if includeDocsCommand {
		docsCmd := newDocsCommand(func() *cobra.Command { return buildRootCommand(false) })
		root.AddCommand(docsCmd)
	}

	return root
}

func newChatCommand(configPath *string) *cobra.Command {
	var (
		session string
		seed    uint64
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Drive a local session turn by turn",
		Long: strings.TrimSpace(`Run an interactive session. Each line is a user message; the routing decision,
engagement state and any re-engagement line are printed after every turn.`),
		Example: strings.Join([]string{
			"  dotpersona chat",
			"  dotpersona chat --session demo --seed 7",
		}, "\n"),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if debug {
				logger.SetLevel(logger.DEBUG)
			}
			e, err := newEngine(cfg, seed)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return runChat(ctx, e, session)
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "default", "Conversation name for the local session")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for reproducible path and topic draws (0 = random)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func newServeCommand(configPath *string) *cobra.Command {
	var seed uint64

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Decide turns for JSON lines on stdin",
		Long: strings.TrimSpace(`Read one inbound message per line from stdin and write one JSON object per
decision to stdout. Sessions are keyed by channel, chat_id and sender_id (or
an explicit session_key). Lines with "kind":"agent" record what the persona
actually sent. Silence check-ins are written as "kind":"check_in" objects.`),
		Example: strings.Join([]string{
			`  echo '{"channel":"web","chat_id":"c1","sender_id":"u1","content":"hey"}' | dotpersona serve`,
		}, "\n"),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			e, err := newEngine(cfg, seed)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return serveJSONLines(ctx, e, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for reproducible path and topic draws (0 = random)")
	return cmd
}

func newTopicsCommand(configPath *string) *cobra.Command {
	var (
		format  string
		catalog string
	)

	cmd := &cobra.Command{
		Use:   "topics",
		Short: "List the re-engagement topic catalog",
		Example: strings.Join([]string{
			"  dotpersona topics",
			"  dotpersona topics --format yaml > topics.yaml",
		}, "\n"),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := catalog
			if path == "" {
				cfg, err := loadConfig(*configPath)
				if err != nil {
					return err
				}
				path = cfg.CatalogPath()
			}
			cat, err := reengage.LoadCatalog(path)
			if err != nil {
				return err
			}
			return writeCatalog(cmd.OutOrStdout(), cat, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table|yaml")
	cmd.Flags().StringVar(&catalog, "catalog", "", "Catalog YAML file (default: configured catalog or built-in)")

	return cmd
}

func writeCatalog(w io.Writer, cat reengage.Catalog, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		data, err := reengage.MarshalCatalog(cat)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCATEGORY\tSTAGE\tENERGY\tPATHS\tSUCCESS")
		for _, t := range cat {
			paths := make([]string, 0, len(t.PreferredPaths))
			for _, p := range t.PreferredPaths {
				paths = append(paths, string(p))
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s-%s\t%s\t%.2f\n",
				t.ID, t.Category, t.Stage, t.MinEnergy, t.MaxEnergy, strings.Join(paths, ","), t.SuccessRate)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q (want table or yaml)", format)
	}
}

func newStatusCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show resolved config paths and stats-store health",
		Example: "  dotpersona status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			writeStatus(cmd.Context(), cmd.OutOrStdout(), *configPath, cfg)
			return nil
		},
	}
}

func writeStatus(ctx context.Context, w io.Writer, configPath string, cfg *config.Config) {
	if ctx == nil {
		ctx = context.Background()
	}
	mark := func(path string) string {
		if _, err := os.Stat(path); err == nil {
			return "✓"
		}
		return "✗"
	}

	fmt.Fprintf(w, "%s Status\n", appName)
	fmt.Fprintf(w, "Version: %s\n", formatVersion())
	build, _ := formatBuildInfo()
	if build != "" {
		fmt.Fprintf(w, "Build: %s\n", build)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Config:", configPath, mark(configPath))
	fmt.Fprintln(w, "Data dir:", cfg.DataPath(), mark(cfg.DataPath()))
	if path := cfg.CatalogPath(); path != "" {
		fmt.Fprintln(w, "Catalog:", path, mark(path))
	} else {
		fmt.Fprintln(w, "Catalog: built-in")
	}

	driver := cfg.Reengage.StatsDriver
	if driver == config.StatsDriverSQLite {
		fmt.Fprintln(w, "Stats store:", driver, cfg.StatsDBPath())
	} else {
		fmt.Fprintln(w, "Stats store:", driver)
	}
	n, err := checkStatsStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(w, "Stats health: ✗ %v\n", err)
	} else {
		fmt.Fprintf(w, "Stats health: ✓ (%d topics with learned rates)\n", n)
	}
	if cfg.Ghost.MaxMessages > 0 {
		fmt.Fprintf(w, "Silence check-ins: up to %d after %v\n", cfg.Ghost.MaxMessages, cfg.GhostDelays())
	} else {
		fmt.Fprintln(w, "Silence check-ins: off")
	}
	if next, err := nextCheck(cfg.Session.CheckSchedule, time.Now()); err != nil {
		fmt.Fprintf(w, "Check schedule: ✗ %v\n", err)
	} else {
		fmt.Fprintf(w, "Check schedule: %s (next %s)\n", cfg.Session.CheckSchedule, next.Format(time.TimeOnly))
	}
	fmt.Fprintln(w, "Log level:", logger.GetLevel())
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  dotpersona version",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion(cmd.OutOrStdout())
			return nil
		},
	}
}
