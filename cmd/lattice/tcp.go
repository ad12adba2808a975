package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lattice"
	"lattice/api"
	"lattice/cmd/lattice/ui"
	"lattice/node"
)

func tcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tcp",
		Short: "Manage TCP connections and listeners",
	}
	cmd.AddCommand(tcpResourceCmd("connection", lattice.TransportConnect))
	cmd.AddCommand(tcpResourceCmd("listener", lattice.TransportListen))
	return cmd
}

func tcpResourceCmd(kind string, mode lattice.TransportMode) *cobra.Command {
	path := "node/tcp/" + kind

	cmd := &cobra.Command{
		Use:   kind,
		Short: "Manage TCP " + kind + "s",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List TCP " + kind + "s",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var list node.TransportList
			if err := client.Request(c.Context(), api.Get, path, nil, &list); err != nil {
				return err
			}
			var rows [][]string
			for _, tr := range list.Items {
				rows = append(rows, []string{tr.Alias, tr.Type.String(), tr.Mode.String(), tr.Address})
			}
			fmt.Println(ui.Table([]string{"ALIAS", "TYPE", "MODE", "ADDRESS"}, rows))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <address>",
		Short: "Create a TCP " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var created node.TransportStatus
			err = client.Request(c.Context(), api.Post, path, node.CreateTransportRequest{
				Type:    lattice.TransportTCP,
				Mode:    mode,
				Address: args[0],
			}, &created)
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Created %s %s at %s.", kind, ui.Bold(created.Alias), created.Address))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <alias>",
		Short: "Delete a TCP " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			err = client.Request(c.Context(), api.Delete, path, node.DeleteTransportRequest{Alias: args[0]}, nil)
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Deleted %s %s.", kind, ui.Bold(args[0])))
			return nil
		},
	})

	return cmd
}
