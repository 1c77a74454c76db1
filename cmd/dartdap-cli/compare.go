package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(commandCompare())
}

func commandCompare() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <dn> <attr=value>",
		Short: "Compare an attribute value, exiting 0 for true and 1 for false",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			conn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			parts := strings.SplitN(args[1], "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("invalid attr=value %q", args[1])
			}
			ok, err := conn.Compare(ctx, args[0], parts[0], parts[1])
			if err != nil {
				return err
			}
			fmt.Println(ok)
			if !ok {
				os.Exit(1)
			}
			return nil
		},
	}
}
