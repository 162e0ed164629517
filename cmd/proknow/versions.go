package main

import (
	"errors"
	"fmt"

	"github.com/jathurchan/proknow/structureset"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

func versionsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Structure set version commands",
	}

	cmd.AddCommand(
		versionsListCommand(a),
		versionsDownloadCommand(a),
		versionsDeleteCommand(a),
		versionsRevertCommand(a),
		versionsLabelCommand(a),
	)
	return cmd
}

// versionsFor resolves the workspace argument and returns the version history.
func (a *app) versionsFor(cmd *cobra.Command, workspaceArg, structureSetID string) (*structureset.Versions, error) {
	ws, err := a.resolveWorkspace(cmd, workspaceArg)
	if err != nil {
		return nil, err
	}
	return a.pk.StructureSets.Versions(ws.ID, structureSetID), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func versionsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list WORKSPACE STRUCTURE_SET",
		Short: "List the versions of a structure set, newest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			versions, err := a.versionsFor(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			all, err := versions.Query(cmd.Context())
			if err != nil {
				return err
			}

			w := newTable(a.out, "VERSION", "STATUS", "CREATED", "LABEL", "MESSAGE")
			for _, v := range all {
				info := v.Info()
				w.row(info.ID, string(info.Status), info.CreatedAt.Local().Format(timeLayout), deref(info.Label), deref(info.Message))
			}
			return w.flush()
		},
	}
}

func versionsDownloadCommand(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download WORKSPACE STRUCTURE_SET VERSION",
		Short: "Download a committed version as a DICOM RT structure set",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			versions, err := a.versionsFor(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			path, err := versions.Download(cmd.Context(), args[2], out)
			if err != nil {
				return err
			}
			a.printf("Downloaded %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", ".", "output file or directory")
	return cmd
}

func versionsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete WORKSPACE STRUCTURE_SET VERSION",
		Short: "Delete a committed version",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			versions, err := a.versionsFor(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			if err := versions.Delete(cmd.Context(), args[2]); err != nil {
				return err
			}
			a.printf("Deleted version %s\n", args[2])
			return nil
		},
	}
}

func versionsRevertCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revert WORKSPACE STRUCTURE_SET VERSION",
		Short: "Make a committed version current again",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			versions, err := a.versionsFor(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			item, err := versions.Revert(cmd.Context(), args[2])
			if err != nil {
				return err
			}
			a.printf("Reverted %s to version %s\n", item.Name, item.VersionID)
			return nil
		},
	}
}

func versionsLabelCommand(a *app) *cobra.Command {
	var label, message string
	cmd := &cobra.Command{
		Use:   "label WORKSPACE STRUCTURE_SET VERSION",
		Short: "Set the label and message of a committed version",
		Long: "Set the label and message of a committed version. A field whose flag\n" +
			"is not given keeps its current value.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("label") && !flags.Changed("message") {
				return errors.New("at least one of --label or --message is required")
			}

			versions, err := a.versionsFor(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			version, err := committedVersion(cmd, versions, args[2])
			if err != nil {
				return fmt.Errorf("label version %s: %w", args[2], err)
			}

			// Saving replaces both fields, so start from the current values.
			if flags.Changed("label") {
				version.Label = &label
			}
			if flags.Changed("message") {
				version.Message = &message
			}
			if err := version.Save(cmd.Context()); err != nil {
				return fmt.Errorf("label version %s: %w", args[2], err)
			}
			a.printf("Updated version %s\n", args[2])
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "version label")
	cmd.Flags().StringVar(&message, "message", "", "version message")
	return cmd
}

// committedVersion finds versionID in the history. The draft is rejected the
// same way the version operations reject it.
func committedVersion(cmd *cobra.Command, versions *structureset.Versions, versionID string) (*structureset.CommittedVersion, error) {
	history, err := versions.Query(cmd.Context())
	if err != nil {
		return nil, err
	}
	for _, v := range history {
		if v.Info().ID != versionID {
			continue
		}
		committed, ok := v.(*structureset.CommittedVersion)
		if !ok {
			return nil, fmt.Errorf("cannot label: %w", structureset.ErrDraftVersion)
		}
		return committed, nil
	}
	return nil, fmt.Errorf("version %s not found", versionID)
}
