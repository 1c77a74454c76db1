package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/buzz3791/dartdap/proto"
)

func init() {
	RootCmd.AddCommand(commandAdd())
}

func commandAdd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <dn> <attr=value>...",
		Short: "Create a new entry",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			conn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			attrs := map[string][]string{}
			var order []string
			for _, kv := range args[1:] {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid attr=value pair %q", kv)
				}
				if _, ok := attrs[parts[0]]; !ok {
					order = append(order, parts[0])
				}
				attrs[parts[0]] = append(attrs[parts[0]], parts[1])
			}
			var encoded []proto.Attribute
			for _, name := range order {
				encoded = append(encoded, proto.Attribute{Type: name, Vals: attrs[name]})
			}
			if err := conn.Add(ctx, args[0], encoded); err != nil {
				return err
			}
			fmt.Println("add ok")
			return nil
		},
	}
}
