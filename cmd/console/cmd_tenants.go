package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"tenant-console/internal/rbac"
	"tenant-console/internal/tenant"

	"github.com/spf13/cobra"
)

func newTenantsCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tenants",
		Aliases: []string{"workspaces"},
		Short:   "List and create workspaces",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the workspaces you belong to",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			ts, err := a.tenants.ListMine(cmd.Context())
			if err != nil {
				return err
			}
			printTenants(cmd, ts)
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			slug, _ := cmd.Flags().GetString("slug")
			t, err := a.tenants.Create(cmd.Context(), tenant.CreateRequest{Name: args[0], Slug: slug})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created workspace %s (/%s) id=%s\n", t.Name, t.Slug, t.ID)
			return nil
		},
	}
	create.Flags().String("slug", "", "url slug (derived from the name when empty)")

	pending := &cobra.Command{
		Use:   "invitations TENANT_ID",
		Short: "List invitations issued by a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			invs, err := a.tenants.ListInvitations(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "EMAIL\tROLE\tSTATUS\tEXPIRES\tPROJECTS")
			for _, inv := range invs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					inv.InvitedEmail, inv.Role, inv.Status, formatTime(inv.ExpiresAt), len(inv.ProjectIDs))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(list, create, pending)
	return cmd
}

func printTenants(cmd *cobra.Command, ts []tenant.Tenant) {
	out := cmd.OutOrStdout()
	if len(ts) == 0 {
		fmt.Fprintln(out, "No workspaces yet. Create one with `console tenants create NAME`.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSLUG\tPLAN\tSTATUS\tWARNINGS")
	for _, t := range ts {
		fmt.Fprintf(w, "%s\t%s\t/%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Slug, t.Plan, t.Status, strings.Join(t.Warnings(), "; "))
	}
	_ = w.Flush()
}

func newInviteCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite TENANT_ID EMAIL",
		Short: "Invite someone to a workspace, optionally granting projects",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			role, _ := cmd.Flags().GetString("role")
			projects, _ := cmd.Flags().GetStringSlice("project")
			inv, err := a.tenants.Invite(cmd.Context(), args[0], tenant.InviteRequest{
				Email:      args[1],
				Role:       role,
				ProjectIDs: projects,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Invited %s as %s (expires %s)\n", args[1], inv.Role, formatTime(inv.ExpiresAt))
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", rbac.DescribeTenantRole(inv.Role))
			return nil
		},
	}
	cmd.Flags().String("role", "TENANT_USER", "TENANT_ADMIN or TENANT_USER")
	cmd.Flags().StringSlice("project", nil, "project id to grant (repeatable)")
	return cmd
}
