package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lattice/api"
	"lattice/cmd/lattice/ui"
	"lattice/node"
)

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage node services",
	}

	var addr string
	start := &cobra.Command{
		Use:       "start <kind>",
		Short:     "Start a service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"vault", "identity", "authenticated", "uppercase", "echo", "authenticator", "verifier", "credentials"},
		RunE: func(c *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var body any
			if addr != "" {
				body = node.StartServiceRequest{Addr: addr}
			}
			var started node.ServiceStatus
			err = client.Request(c.Context(), api.Post, "node/services/"+args[0], body, &started)
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Service %s started at %s.", args[0], ui.Bold(started.Addr)))
			return nil
		},
	}
	start.Flags().StringVar(&addr, "at", "", "Worker address (defaults to the service's well-known address)")
	cmd.AddCommand(start)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List running services",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var list node.ServiceList
			if err := client.Request(c.Context(), api.Get, "node/services", nil, &list); err != nil {
				return err
			}
			var rows [][]string
			for _, s := range list.Items {
				rows = append(rows, []string{s.Addr, s.Kind})
			}
			fmt.Println(ui.Table([]string{"ADDRESS", "KIND"}, rows))
			return nil
		},
	})

	return cmd
}
