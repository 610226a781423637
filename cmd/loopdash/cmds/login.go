package cmds

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/go-go-golems/loopdash/pkg/api"
	"github.com/go-go-golems/loopdash/pkg/auth"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const envPassword = "LOOPDASH_PASSWORD"

func newLoginCmd() *cobra.Command {
	var username string
	var password string
	var logout bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the dashboard server and store the tokens in the credentials file",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			store := opts.store()
			if logout {
				if err := store.Clear(); err != nil {
					return err
				}
				okf(cmd.ErrOrStderr(), "removed %s", store.Path())
				return nil
			}

			client, err := opts.client()
			if err != nil {
				return err
			}
			if password == "" {
				password = os.Getenv(envPassword)
			}
			if password == "" {
				infof(cmd.ErrOrStderr(), "password for %s:", username)
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.Wrap(err, "read password")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()
			tokens, err := client.Login(ctx, api.LoginRequest{Username: username, Password: password})
			if err != nil {
				if api.IsUnauthorized(err) {
					return errors.New("login rejected: wrong username or password")
				}
				return err
			}
			if err := store.Save(auth.Credentials{
				Server:       opts.Server,
				AccessToken:  tokens.AccessToken,
				RefreshToken: tokens.RefreshToken,
			}); err != nil {
				return err
			}
			okf(cmd.ErrOrStderr(), "logged in to %s as %s (credentials in %s)", opts.Server, username, store.Path())
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (default: $"+envPassword+", then one line from stdin)")
	cmd.Flags().BoolVar(&logout, "logout", false, "Remove the stored credentials instead")
	return cmd
}
