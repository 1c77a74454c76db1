package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(commandDelete())
}

func commandDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <dn>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			conn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := conn.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println("delete ok")
			return nil
		},
	}
}
