package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lattice/api"
	"lattice/cmd/lattice/ui"
	"lattice/identity"
	"lattice/node"
)

func credentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage the node's credential",
	}

	var overwrite bool
	get := &cobra.Command{
		Use:   "get <route>",
		Short: "Obtain a credential from an authority",
		Long:  "Obtain a credential. The route is comma-separated and ends at an authenticator service.",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var cred identity.Credential
			err = client.Request(c.Context(), api.Post, "node/credentials/actions/get", node.GetCredentialRequest{
				Route:     splitRoute(args[0]),
				Overwrite: overwrite,
			}, &cred)
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Credential issued by %s.", ui.Bold(cred.Issuer)))
			fmt.Print(ui.KeyValues("  ",
				ui.KV("subject", cred.Subject),
				ui.KV("expires", time.Unix(cred.Expires, 0).UTC().Format(time.RFC3339)),
			))
			return nil
		},
	}
	get.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an already obtained credential")
	cmd.AddCommand(get)

	cmd.AddCommand(&cobra.Command{
		Use:   "present <route>",
		Short: "Present the credential to a remote node",
		Long:  "Present the credential. The route is comma-separated and ends at a credentials service.",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			err = client.Request(c.Context(), api.Post, "node/credentials/actions/present", node.PresentCredentialRequest{
				Route: splitRoute(args[0]),
			}, nil)
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Credential accepted."))
			return nil
		},
	})

	return cmd
}
