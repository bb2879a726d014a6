package main

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/org/dusseldorf/pkg/models"
)

func domainsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "domains", Short: "Manage listening domains"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered domains",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			domains, err := store.ListDomains(cmd.Context())
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Domain", "Owner", "Public IPs"})
			for _, d := range domains {
				table.Append([]string{d.Domain, d.Owner, strings.Join(d.PublicIPs, ",")})
			}
			table.Render()
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <domain>",
		Short: "Register a domain the listeners answer for",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			ips, _ := cmd.Flags().GetStringSlice("ips")
			for _, ip := range ips {
				if net.ParseIP(ip) == nil {
					return fmt.Errorf("invalid IP address %q", ip)
				}
			}
			if len(ips) == 0 {
				return fmt.Errorf("at least one public IP is required")
			}

			store, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			domain := &models.Domain{
				Domain:    strings.ToLower(strings.TrimSuffix(args[0], ".")),
				PublicIPs: ips,
				Owner:     owner,
			}
			if err := store.UpsertDomain(cmd.Context(), domain); err != nil {
				return err
			}
			fmt.Printf("domain %s saved\n", domain.Domain)
			return nil
		},
	}
	addCmd.Flags().String("owner", models.SharedOwner, "Owning user, or the shared owner for multi-tenant domains")
	addCmd.Flags().StringSlice("ips", nil, "Public IPs returned by default DNS responses")

	cmd.AddCommand(listCmd, addCmd)
	return cmd
}
