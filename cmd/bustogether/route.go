package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bustogether/pkg/types"
)

func newRouteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Route management commands",
	}

	cmd.AddCommand(newRouteAddCmd())
	cmd.AddCommand(newRouteListCmd())
	cmd.AddCommand(newRouteRmCmd())
	return cmd
}

func newRouteAddCmd() *cobra.Command {
	var id, name string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a route",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			route := &types.Route{ID: id, Name: name}
			if err := repo.CreateRoute(cmd.Context(), route); err != nil {
				return fmt.Errorf("add route: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added route %s (%s)\n", route.ID, route.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "route id used in QR links (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newRouteListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			routes, err := repo.ListRoutes(cmd.Context())
			if err != nil {
				return fmt.Errorf("list routes: %w", err)
			}
			if len(routes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No routes.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCREATED")
			for _, r := range routes {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Name, r.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
}

func newRouteRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <route-id>",
		Short: "Remove a route and its schedules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(cmd)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.DeleteRoute(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("remove route: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed route %s\n", args[0])
			return nil
		},
	}
}
