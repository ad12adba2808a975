package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lattice/api"
	"lattice/node"
)

func messageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Send raw messages through the node",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "send <route> <payload>",
		Short: "Send a payload along a route and print the reply",
		Long:  "Send a payload. The route is comma-separated worker addresses.",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var reply []byte
			err = client.Request(c.Context(), api.Post, "v0/message", node.SendMessageRequest{
				Route:   splitRoute(args[0]),
				Message: []byte(args[1]),
			}, &reply)
			if err != nil {
				return err
			}
			fmt.Println(string(reply))
			return nil
		},
	})

	return cmd
}
