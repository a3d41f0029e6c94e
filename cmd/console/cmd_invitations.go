package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"tenant-console/internal/invitation"
	"tenant-console/internal/rbac"

	"github.com/spf13/cobra"
)

func newInvitationsCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invitations",
		Short: "Review invitations addressed to you",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List pending invitations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			invs, err := a.invitations.ListPending(cmd.Context())
			if err != nil {
				return err
			}
			printInvitations(cmd, invs)
			return nil
		},
	}

	accept := &cobra.Command{
		Use:   "accept TOKEN",
		Short: "Accept an invitation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			g, err := a.invitations.Accept(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Joined workspace %s as %s\n", g.Tenant.TenantID, g.Tenant.Role)
			for _, p := range g.Projects {
				fmt.Fprintf(out, "  project %s (%s)\n", p.ProjectID, p.Role)
			}
			return nil
		},
	}

	reject := &cobra.Command{
		Use:   "reject TOKEN",
		Short: "Decline an invitation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			if err := a.invitations.Reject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Invitation declined.")
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show TOKEN",
		Short: "Show one invitation, including ones that are no longer pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			inv, err := a.invitations.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workspace:  %s (%s)\n", inv.TenantName, inv.TenantID)
			fmt.Fprintf(out, "Role:       %s, %s\n", inv.Role, rbac.DescribeTenantRole(inv.Role))
			fmt.Fprintf(out, "Invited by: %s\n", inv.InvitedByEmail)
			fmt.Fprintf(out, "Status:     %s\n", invitation.EffectiveStatus(inv, time.Now()))
			fmt.Fprintf(out, "Expires:    %s\n", formatTime(inv.ExpiresAt))
			fmt.Fprintf(out, "Projects:   %s\n", projectNames(inv))
			return nil
		},
	}

	cmd.AddCommand(list, show, accept, reject)
	return cmd
}

func printInvitations(cmd *cobra.Command, invs []invitation.Invitation) {
	out := cmd.OutOrStdout()
	if len(invs) == 0 {
		fmt.Fprintln(out, "No pending invitations.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOKEN\tWORKSPACE\tROLE\tINVITED BY\tEXPIRES\tPROJECTS")
	for _, inv := range invs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			inv.Token, inv.TenantName, inv.Role, inv.InvitedByEmail, formatTime(inv.ExpiresAt), projectNames(inv))
	}
	_ = w.Flush()
}

func projectNames(inv invitation.Invitation) string {
	if len(inv.ProjectIDs) == 0 {
		return "-"
	}
	names := make(map[string]string, len(inv.Projects))
	for _, p := range inv.Projects {
		names[p.ID] = p.Name
	}
	s := ""
	for i, id := range inv.ProjectIDs {
		if i > 0 {
			s += ", "
		}
		if n := names[id]; n != "" {
			s += n
		} else {
			s += id
		}
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}
