package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"tenant-console/internal/project"

	"github.com/spf13/cobra"
)

func newProjectsCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage projects inside a workspace",
	}

	list := &cobra.Command{
		Use:   "list [TENANT_ID]",
		Short: "List a workspace's projects, or your project memberships when no workspace is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			if len(args) == 1 {
				ps, err := a.projects.ListByTenant(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printProjects(cmd, ps)
				return nil
			}
			byTenant, err := a.projects.ListMine(cmd.Context())
			if err != nil {
				return err
			}
			tenantIDs := make([]string, 0, len(byTenant))
			for id := range byTenant {
				tenantIDs = append(tenantIDs, id)
			}
			sort.Strings(tenantIDs)
			if len(tenantIDs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "You are not a member of any project.")
			}
			for _, id := range tenantIDs {
				fmt.Fprintf(cmd.OutOrStdout(), "Workspace %s\n", id)
				printProjects(cmd, byTenant[id])
			}
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "create TENANT_ID NAME",
		Short: "Create a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			desc, _ := cmd.Flags().GetString("description")
			p, err := a.projects.Create(cmd.Context(), args[0], project.CreateRequest{Name: args[1], Description: desc})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s id=%s\n", p.Name, p.ID)
			return nil
		},
	}
	create.Flags().String("description", "", "optional description")

	del := &cobra.Command{
		Use:   "delete PROJECT_ID",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			if err := a.projects.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Project deleted.")
			return nil
		},
	}

	cmd.AddCommand(list, create, del)
	return cmd
}

func printProjects(cmd *cobra.Command, ps []project.Project) {
	out := cmd.OutOrStdout()
	if len(ps) == 0 {
		fmt.Fprintln(out, "  no projects")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tSTATUS\tROLE\tDOMAINS\tREPOS")
	for _, p := range ps {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%d\t%d\n", p.ID, p.Name, p.Status, p.Role, p.DomainCount, p.RepoCount)
	}
	_ = w.Flush()
}
