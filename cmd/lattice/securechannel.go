package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lattice/api"
	"lattice/cmd/lattice/ui"
	"lattice/node"
)

func secureChannelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secure-channel",
		Short: "Manage secure channels",
	}

	var authorized []string
	create := &cobra.Command{
		Use:   "create <route>",
		Short: "Create a secure channel to a listener",
		Long:  "Create a secure channel. The route is comma-separated, e.g. <alias>,api.",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var ch node.CreateSecureChannelResponse
			err = client.Request(c.Context(), api.Post, "node/secure_channel", node.CreateSecureChannelRequest{
				Route:                 splitRoute(args[0]),
				AuthorizedIdentifiers: authorized,
			}, &ch)
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Secure channel %s established with %s.", ui.Bold(ch.Addr), ch.PeerID))
			return nil
		},
	}
	create.Flags().StringSliceVar(&authorized, "authorized", nil, "Identifiers the peer must match")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List secure channels",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var list node.SecureChannelList
			if err := client.Request(c.Context(), api.Get, "node/secure_channel", nil, &list); err != nil {
				return err
			}
			var rows [][]string
			for _, ch := range list.Items {
				rows = append(rows, []string{ch.Addr, ch.PeerID, ch.Route})
			}
			fmt.Println(ui.Table([]string{"ADDRESS", "PEER", "ROUTE"}, rows))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <address>",
		Short: "Delete a secure channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			err = client.Request(c.Context(), api.Delete, "node/secure_channel",
				node.DeleteSecureChannelRequest{Addr: args[0]}, nil)
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Secure channel %s deleted.", ui.Bold(args[0])))
			return nil
		},
	})

	listener := &cobra.Command{
		Use:   "listener",
		Short: "Manage secure channel listeners",
	}

	var listenerAuthorized []string
	listenerCreate := &cobra.Command{
		Use:   "create <address>",
		Short: "Create a secure channel listener",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			err = client.Request(c.Context(), api.Post, "node/secure_channel_listener",
				node.CreateSecureChannelListenerRequest{
					Addr:                  args[0],
					AuthorizedIdentifiers: listenerAuthorized,
				}, nil)
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Listener %s created.", ui.Bold(args[0])))
			return nil
		},
	}
	listenerCreate.Flags().StringSliceVar(&listenerAuthorized, "authorized", nil, "Identifiers initiators must match")
	listener.AddCommand(listenerCreate)

	listener.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List secure channel listeners",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var list node.SecureChannelListenerList
			err = client.Request(c.Context(), api.Get, "node/secure_channel_listener", nil, &list)
			if err != nil {
				return err
			}
			for _, addr := range list.Addrs {
				fmt.Println(addr)
			}
			return nil
		},
	})

	cmd.AddCommand(listener)
	return cmd
}
