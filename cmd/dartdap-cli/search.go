package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/buzz3791/dartdap/proto"
)

func init() {
	RootCmd.AddCommand(commandSearch())
}

func commandSearch() *cobra.Command {
	var scope string
	var attrs string
	cmd := &cobra.Command{
		Use:   "search <base-dn> <filter>",
		Short: "Run a search and print matching entries",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			conn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			var sc proto.Scope
			switch scope {
			case "base":
				sc = proto.ScopeBaseObject
			case "one":
				sc = proto.ScopeSingleLevel
			default:
				sc = proto.ScopeWholeSubtree
			}
			var attributes []string
			if attrs != "" {
				attributes = strings.Split(attrs, ",")
			}
			cursor, err := conn.Search(ctx, &proto.SearchRequest{
				BaseDN:     args[0],
				Scope:      sc,
				Filter:     args[1],
				Attributes: attributes,
			})
			if err != nil {
				return err
			}
			for cursor.Next() {
				if e := cursor.Entry(); e != nil {
					fmt.Printf("dn: %s\n", e.DN)
					for _, a := range e.Attributes {
						for _, v := range a.Values {
							fmt.Printf("%s: %s\n", a.Name, v)
						}
					}
					fmt.Println()
				}
				if r := cursor.Reference(); r != nil {
					for _, uri := range r.URIs {
						fmt.Printf("ref: %s\n", uri)
					}
				}
			}
			return cursor.Err()
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "sub", "Search scope: base, one, or sub")
	cmd.Flags().StringVar(&attrs, "attrs", "", "Comma-separated attribute list")
	return cmd
}
