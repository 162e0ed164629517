package main

import (
	"fmt"
	"io"

	"github.com/jathurchan/proknow"
	"github.com/jathurchan/proknow/config"
	"github.com/jathurchan/proknow/workspace"
	"github.com/spf13/cobra"
)

// app carries the client shared by every subcommand.
type app struct {
	out io.Writer
	pk  *proknow.ProKnow

	configFile string
	envFile    string
	logLevel   string
}

func (a *app) close() {
	if a.pk != nil {
		_ = a.pk.Close()
	}
}

// connect builds the client from --config, or from the environment when no
// file is given. A preset client is kept.
func (a *app) connect() error {
	if a.pk != nil {
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	switch {
	case a.configFile != "":
		cfg, err = config.LoadFile(a.configFile)
	case a.envFile != "":
		cfg, err = config.FromEnv(a.envFile)
	default:
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	a.pk, err = proknow.New(cfg, proknow.WithoutMetrics())
	return err
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "proknow",
		Short:         "ProKnow command line client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.connect()
		},
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "HCL configuration file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "env file with PROKNOW_* variables (default ./.env)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		workspacesCommand(a),
		versionsCommand(a),
		roisCommand(a),
	)
	return root
}

func workspacesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspaces",
		Short: "Workspace commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := a.pk.Workspaces.Query(cmd.Context())
			if err != nil {
				return err
			}
			w := newTable(a.out, "ID", "SLUG", "NAME", "PROTECTED")
			for _, item := range items {
				w.row(item.ID, item.Slug, item.Name, fmt.Sprint(item.Protected))
			}
			return w.flush()
		},
	})
	return cmd
}

// resolveWorkspace accepts a workspace id, name or slug.
func (a *app) resolveWorkspace(cmd *cobra.Command, idOrName string) (*workspace.Item, error) {
	return a.pk.Workspaces.Resolve(cmd.Context(), idOrName)
}
