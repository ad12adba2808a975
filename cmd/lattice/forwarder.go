package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lattice/api"
	"lattice/cmd/lattice/ui"
	"lattice/node"
)

func forwarderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forwarder",
		Short: "Manage forwarding relays",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <route>",
		Short: "Register a relay with a remote forwarding service",
		Long:  "Register a relay. The route is comma-separated and ends at a forwarding service.",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var fwd node.ForwarderStatus
			err = client.Request(c.Context(), api.Post, "node/forwarder", node.CreateForwarderRequest{
				Route: splitRoute(args[0]),
			}, &fwd)
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Relay %s registered.", ui.Bold(fwd.RelayAddr)))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered relays",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var list []node.ForwarderStatus
			if err := client.Request(c.Context(), api.Get, "node/forwarder", nil, &list); err != nil {
				return err
			}
			var rows [][]string
			for _, fwd := range list {
				rows = append(rows, []string{fwd.RelayAddr, fwd.Route})
			}
			fmt.Println(ui.Table([]string{"RELAY", "ROUTE"}, rows))
			return nil
		},
	})

	return cmd
}
