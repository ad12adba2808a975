package main

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"lattice/api"
	"lattice/cmd/lattice/ui"
	"lattice/node"
)

func vaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage the node vault",
	}

	var path string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create the node vault",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var body any
			if path != "" {
				body = node.CreateVaultRequest{Path: path}
			}
			if err := client.Request(c.Context(), api.Post, "node/vault", body, nil); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Vault created."))
			return nil
		},
	}
	create.Flags().StringVar(&path, "path", "", "Vault file location (defaults to the node directory)")
	cmd.AddCommand(create)
	return cmd
}

func identityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage the node identity",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create the node identity",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var created node.CreateIdentityResponse
			if err := client.Request(c.Context(), api.Post, "node/identity", nil, &created); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Identity %s created.", ui.Bold(created.ID)))
			return nil
		},
	})

	var full bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the node identity",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			if full {
				var long node.LongIdentityResponse
				err := client.Request(c.Context(), api.Post, "node/identity/actions/show/long", nil, &long)
				if err != nil {
					return err
				}
				fmt.Println(base64.StdEncoding.EncodeToString(long.Identity))
				return nil
			}

			var short node.ShortIdentityResponse
			err = client.Request(c.Context(), api.Post, "node/identity/actions/show/short", nil, &short)
			if err != nil {
				return err
			}
			fmt.Println(short.ID)
			return nil
		},
	}
	show.Flags().BoolVar(&full, "full", false, "Print the full exported identity in base64")
	cmd.AddCommand(show)
	return cmd
}
