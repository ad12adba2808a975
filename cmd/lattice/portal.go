package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lattice/api"
	"lattice/cmd/lattice/ui"
	"lattice/node"
)

func portalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portal",
		Short: "Manage TCP portals",
	}
	cmd.AddCommand(inletCmd())
	cmd.AddCommand(outletCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List inlets and outlets",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var list struct {
				Inlets  []node.InletStatus  `cbor:"1,keyasint"`
				Outlets []node.OutletStatus `cbor:"2,keyasint"`
			}
			if err := client.Request(c.Context(), api.Get, "node/portal", nil, &list); err != nil {
				return err
			}
			var rows [][]string
			for _, in := range list.Inlets {
				rows = append(rows, []string{"inlet", in.Alias, in.ListenAddr, in.Route})
			}
			for _, out := range list.Outlets {
				rows = append(rows, []string{"outlet", out.Alias, out.TargetAddr, out.Addr})
			}
			fmt.Println(ui.Table([]string{"KIND", "ALIAS", "ADDRESS", "TARGET"}, rows))
			return nil
		},
	})
	return cmd
}

func inletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inlet",
		Short: "Manage portal inlets",
	}

	var alias string
	create := &cobra.Command{
		Use:   "create <listen-address> <outlet-route>",
		Short: "Create an inlet feeding an outlet route",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var created node.InletStatus
			err = client.Request(c.Context(), api.Post, "node/inlet", node.CreateInletRequest{
				ListenAddr:  args[0],
				OutletRoute: splitRoute(args[1]),
				Alias:       alias,
			}, &created)
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Inlet %s listening at %s.", ui.Bold(created.Alias), created.ListenAddr))
			return nil
		},
	}
	create.Flags().StringVar(&alias, "alias", "", "Inlet alias (random when empty)")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <alias>",
		Short: "Delete an inlet",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Request(c.Context(), api.Delete, "node/inlet/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Inlet %s deleted.", ui.Bold(args[0])))
			return nil
		},
	})

	return cmd
}

func outletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outlet",
		Short: "Manage portal outlets",
	}

	var alias string
	create := &cobra.Command{
		Use:   "create <target-address>",
		Short: "Create an outlet relaying to a TCP target",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			var created node.OutletStatus
			err = client.Request(c.Context(), api.Post, "node/outlet", node.CreateOutletRequest{
				TargetAddr: args[0],
				Alias:      alias,
			}, &created)
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Outlet %s relaying to %s.", ui.Bold(created.Alias), created.TargetAddr))
			return nil
		},
	}
	create.Flags().StringVar(&alias, "alias", "", "Outlet alias (random when empty)")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <alias>",
		Short: "Delete an outlet",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Request(c.Context(), api.Delete, "node/outlet/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Outlet %s deleted.", ui.Bold(args[0])))
			return nil
		},
	})

	return cmd
}
