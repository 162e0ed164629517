package main

import (
	"github.com/jathurchan/proknow/structureset"
	"github.com/spf13/cobra"
)

func roisCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rois",
		Short: "ROI commands",
	}

	var version string
	list := &cobra.Command{
		Use:   "list WORKSPACE STRUCTURE_SET",
		Short: "List the ROIs of a structure set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.resolveWorkspace(cmd, args[0])
			if err != nil {
				return err
			}

			var item *structureset.Item
			if version == "" {
				item, err = a.pk.StructureSets.Get(cmd.Context(), ws.ID, args[1])
			} else {
				item, err = a.pk.StructureSets.Versions(ws.ID, args[1]).Get(cmd.Context(), version)
			}
			if err != nil {
				return err
			}

			w := newTable(a.out, "ID", "NAME", "TYPE", "COLOR")
			for _, roi := range item.ROIs {
				w.row(roi.ID, roi.Name, string(roi.Type), roi.Color.String())
			}
			return w.flush()
		},
	}
	list.Flags().StringVar(&version, "version", "", "version id (default: current approved version)")

	cmd.AddCommand(list)
	return cmd
}
