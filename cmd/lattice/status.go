package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lattice"
	"lattice/api"
	"lattice/cmd/lattice/ui"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the node's status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var status lattice.NodeStatus
			if err := client.Request(cmd.Context(), api.Get, "node", nil, &status); err != nil {
				return err
			}

			fmt.Print(renderStatus(status))
			return nil
		},
	}
}

func renderStatus(status lattice.NodeStatus) string {
	return ui.Bold(status.Name) + "\n" + ui.KeyValues("  ",
		ui.KV("state", ui.Accent(status.State)),
		ui.KV("pid", strconv.Itoa(int(status.PID))),
		ui.KV("workers", strconv.Itoa(int(status.WorkerCount))),
		ui.KV("transports", strconv.Itoa(int(status.TransportCount))),
	)
}
