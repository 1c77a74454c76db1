package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buzz3791/dartdap/proto"
)

func init() {
	RootCmd.AddCommand(commandModDN())
}

func commandModDN() *cobra.Command {
	var newSuperior string
	var deleteOld bool
	cmd := &cobra.Command{
		Use:   "moddn <dn> <new-rdn>",
		Short: "Rename or move an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			conn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			req := &proto.ModifyDNRequest{
				DN:           args[0],
				NewRDN:       args[1],
				DeleteOldRDN: deleteOld,
				NewSuperior:  newSuperior,
			}
			if err := conn.ModifyDN(ctx, req); err != nil {
				return err
			}
			fmt.Println("moddn ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&newSuperior, "new-superior", "", "Move the entry under this DN")
	cmd.Flags().BoolVar(&deleteOld, "delete-old-rdn", true, "Remove the old RDN's attribute value")
	return cmd
}
