package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func userCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage customers and executors",
	}

	var role string
	add := &cobra.Command{
		Use:   "add <name> <email>",
		Short: "Create a user",
		Example: `  taskdesk user add "Ann Lee" ann@example.com --role customer
  taskdesk user add Bob bob@example.com --role executor`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := s.svc.CreateUser(cmd.Context(), args[0], args[1], role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}
	add.Flags().StringVar(&role, "role", "customer", "user role (customer, executor)")

	var format string
	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := s.svc.Users(cmd.Context())
			if err != nil {
				return err
			}
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), toUserViews(users))
			}
			tw := newTable(cmd.OutOrStdout(), "ID", "NAME", "EMAIL", "ROLE")
			for _, u := range users {
				tw.row(u.ID, u.Name, u.Email, u.Role.String())
			}
			return tw.flush()
		},
	}
	addFormatFlag(list, &format)

	var name, email, newRole string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a user's name, email or role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := s.svc.UpdateUser(cmd.Context(), args[0], name, email, newRole)
			return err
		},
	}
	update.Flags().StringVar(&name, "name", "", "new name")
	update.Flags().StringVar(&email, "email", "", "new email")
	update.Flags().StringVar(&newRole, "role", "", "new role (customer, executor)")

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a user that is not assigned to any task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.svc.DeleteUser(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(add, list, update, rm)
	return cmd
}
