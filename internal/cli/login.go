package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/presensync/presensync/backend/go-services/internal/identity"
	"github.com/presensync/presensync/backend/go-services/internal/roles"
	"github.com/spf13/cobra"
)

// ErrNoAccess is returned when the account may not open the requested dashboard.
var ErrNoAccess = errors.New("account has no access to the requested dashboard")

type loginOptions struct {
	email     string
	password  string
	as        string
	showToken bool
	wait      time.Duration
}

// LoginResult is printed by the login command.
type LoginResult struct {
	UID      string `json:"uid"`
	Role     string `json:"role,omitempty"`
	Redirect string `json:"redirect"`
	IDToken  string `json:"idToken,omitempty"`
}

// NewLoginCommand signs in through a session context, the same
// sign-in, synchronize, resolve sequence a client goes through.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	o := &loginOptions{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print where the account lands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var target *roles.Role
			if o.as != "" {
				r, ok := roles.Parse(o.as)
				if !ok {
					return fmt.Errorf("unknown dashboard %q", o.as)
				}
				target = &r
			}
			env := rootOpts.env
			sc := identity.NewSessionContext(env.Auth, env.Store)
			sc.Start()
			defer sc.Close()

			ctx := cmd.Context()
			id, err := env.Auth.SignIn(ctx, o.email, o.password)
			if err != nil {
				return err
			}
			wctx, cancel := context.WithTimeout(ctx, o.wait)
			defer cancel()
			st, err := sc.Wait(wctx)
			if err != nil {
				return fmt.Errorf("waiting for session: %w", err)
			}

			if target == nil {
				t := roles.Student
				if st.Role != nil {
					t = *st.Role
				}
				target = &t
			}
			res := LoginResult{UID: st.UserID, Redirect: st.Resolve(*target)}
			if st.Role != nil {
				res.Role = string(*st.Role)
			}
			if res.Redirect == roles.LoginRoute {
				env.Auth.SignOut(ctx, id.UID)
				return fmt.Errorf("%w: %s", ErrNoAccess, *target)
			}
			if o.showToken {
				res.IDToken = st.IDToken
			}
			return output(rootOpts, cmd.OutOrStdout(), res.Redirect, res)
		},
	}
	cmd.Flags().StringVar(&o.email, "email", "", "account email")
	cmd.Flags().StringVar(&o.password, "password", "", "account password")
	cmd.Flags().StringVar(&o.as, "as", "", "dashboard to open (student|teacher|admin); default is the stored role")
	cmd.Flags().BoolVar(&o.showToken, "show-token", false, "include the identity token in the output")
	cmd.Flags().DurationVar(&o.wait, "wait", 10*time.Second, "how long to wait for the profile sync")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
