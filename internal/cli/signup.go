package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/internal/roles"
	"github.com/spf13/cobra"
)

type signupOptions struct {
	email    string
	password string
	name     string
	role     string
}

// SignupResult is printed by the signup command.
type SignupResult struct {
	UID      string `json:"uid"`
	Role     string `json:"role"`
	Redirect string `json:"redirect"`
	Warning  string `json:"warning,omitempty"`
}

// NewSignupCommand creates an account with both profile copies. Unlike the
// public API it may create admins.
func NewSignupCommand(rootOpts *RootOptions) *cobra.Command {
	o := &signupOptions{}
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and its profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := roles.Parse(o.role)
			if !ok {
				return fmt.Errorf("unknown role %q", o.role)
			}
			env := rootOpts.env
			ctx := cmd.Context()
			name := strings.TrimSpace(o.name)

			id, err := env.Auth.SignUp(ctx, o.email, o.password, name)
			if err != nil {
				return err
			}
			res := SignupResult{UID: id.UID, Role: string(role), Redirect: role.Dashboard()}
			p := &models.UserProfile{
				UID:         id.UID,
				Email:       id.Email,
				FullName:    name,
				DisplayName: name,
				Role:        string(role),
				CreatedAt:   models.Timestamp(time.Now()),
			}
			if err := env.Mirror.CreateBoth(ctx, p); err != nil {
				res.Warning = "profile incomplete, repaired at next login: " + err.Error()
			}
			return output(rootOpts, cmd.OutOrStdout(), fmt.Sprintf("created %s (%s) -> %s", res.UID, res.Role, res.Redirect), res)
		},
	}
	cmd.Flags().StringVar(&o.email, "email", "", "account email")
	cmd.Flags().StringVar(&o.password, "password", "", "account password")
	cmd.Flags().StringVar(&o.name, "name", "", "full name")
	cmd.Flags().StringVar(&o.role, "role", string(roles.Student), "student|teacher|admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
