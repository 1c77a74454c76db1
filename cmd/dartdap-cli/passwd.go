package main

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-password/password"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(commandPasswd())
}

// commandPasswd issues RFC 3062's Password Modify extended operation. With
// --generate and no explicit --new-password, a random password is
// generated client-side and printed, mirroring how a server-generated
// genPassword would be reported if one came back on the wire.
func commandPasswd() *cobra.Command {
	var userIdentity, oldPassword, newPassword string
	var generate bool
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change a password via the Password Modify extended operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			conn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			if newPassword == "" && generate {
				newPassword, err = password.Generate(16, 4, 4, false, false)
				if err != nil {
					return fmt.Errorf("generating password: %w", err)
				}
			}
			genPassword, err := conn.PasswordModify(ctx, userIdentity, oldPassword, newPassword)
			if err != nil {
				return err
			}
			switch {
			case genPassword != "":
				fmt.Println(genPassword)
			case newPassword != "" && generate:
				fmt.Println(newPassword)
			default:
				fmt.Println("passwd ok")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userIdentity, "for", "", "authzId of the user whose password is being changed; empty means self")
	cmd.Flags().StringVar(&oldPassword, "old-password", "", "Current password, if required by the server")
	cmd.Flags().StringVar(&newPassword, "new-password", "", "New password; omit with --generate to request a random one")
	cmd.Flags().BoolVarP(&generate, "generate", "g", false, "Generate a random password client-side when --new-password is omitted")
	return cmd
}
