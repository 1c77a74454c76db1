package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/buzz3791/dartdap/proto"
)

func init() {
	RootCmd.AddCommand(commandModify())
}

// commandModify accepts changes of the form op:attr=value, where op is one
// of add, delete, or replace. A delete with no "=value" removes every
// value of the attribute.
func commandModify() *cobra.Command {
	return &cobra.Command{
		Use:   "modify <dn> <op:attr=value>...",
		Short: "Apply add/delete/replace changes to an entry",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			conn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			req := &proto.ModifyRequest{DN: args[0]}
			for _, change := range args[1:] {
				opAndRest := strings.SplitN(change, ":", 2)
				if len(opAndRest) != 2 {
					return fmt.Errorf("invalid change %q, expected op:attr=value", change)
				}
				attrAndValue := strings.SplitN(opAndRest[1], "=", 2)
				attr := attrAndValue[0]
				var vals []string
				if len(attrAndValue) == 2 {
					vals = []string{attrAndValue[1]}
				}
				switch opAndRest[0] {
				case "add":
					req.Add(attr, vals)
				case "delete":
					req.Delete(attr, vals)
				case "replace":
					req.Replace(attr, vals)
				default:
					return fmt.Errorf("unknown change operation %q", opAndRest[0])
				}
			}
			if err := conn.Modify(ctx, req); err != nil {
				return err
			}
			fmt.Println("modify ok")
			return nil
		},
	}
}
