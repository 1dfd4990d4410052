package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func tagCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage tags",
	}

	add := &cobra.Command{
		Use:   "add <name>...",
		Short: "Create tags, reusing any that already exist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				t, err := s.svc.CreateTag(cmd.Context(), name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.ID, t.Name)
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tags, err := s.svc.Tags(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout(), "ID", "NAME")
			for _, t := range tags {
				tw.row(t.ID, t.Name)
			}
			return tw.flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
