package main

import (
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func zonesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "zones", Short: "Inspect zones"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all zones",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			zones, err := store.ListZones(cmd.Context())
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"FQDN", "Domain", "Owner", "Expiry"})
			for _, z := range zones {
				expiry := "never"
				if z.Expiry != nil {
					expiry = z.Expiry.Format(time.RFC3339)
				}
				table.Append([]string{z.FQDN, z.Domain, z.Owner, expiry})
			}
			table.Render()
			return nil
		},
	}

	cmd.AddCommand(listCmd)
	return cmd
}
