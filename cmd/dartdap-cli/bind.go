package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(commandBind())
}

func commandBind() *cobra.Command {
	return &cobra.Command{
		Use:   "bind <dn> <password>",
		Short: "Perform a simple bind and report the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			flagBindDN, flagPassword = "", ""
			conn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := conn.Bind(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("bind ok")
			return nil
		},
	}
}
