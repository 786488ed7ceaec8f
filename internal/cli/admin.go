package cli

import (
	"errors"
	"fmt"

	"github.com/presensync/presensync/backend/go-services/internal/identity"
	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/internal/notifications"
	"github.com/presensync/presensync/backend/go-services/internal/roles"
	"github.com/spf13/cobra"
)

// NewSetRoleCommand changes the role on both profile copies.
func NewSetRoleCommand(rootOpts *RootOptions) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "set-role <uid> <role>",
		Short: "Change the role of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid := args[0]
			role, ok := roles.Parse(args[1])
			if !ok {
				return fmt.Errorf("unknown role %q", args[1])
			}
			env := rootOpts.env
			ctx := cmd.Context()
			err := env.Mirror.UpdateBoth(ctx, uid, models.Fields{"role": string(role)})
			var merr *identity.MirrorError
			switch {
			case err == nil:
			case errors.As(err, &merr) && merr.Partial():
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			case errors.As(err, &merr) && merr.Missing():
				return fmt.Errorf("no profile for %s", uid)
			default:
				return err
			}
			if !quiet {
				msg := fmt.Sprintf("Your role has been changed to %s.", role)
				if _, err := env.Notifications.Create(ctx, uid, msg, models.NotificationInfo, notifications.SenderAdmin); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: notify: %v\n", err)
				}
			}
			return output(rootOpts, cmd.OutOrStdout(), fmt.Sprintf("%s is now %s", uid, role), map[string]string{"uid": uid, "role": string(role)})
		},
	}
	cmd.Flags().BoolVar(&quiet, "quiet", false, "do not notify the user")
	return cmd
}

// NewNotifyCommand sends a notification to one account or to everyone.
func NewNotifyCommand(rootOpts *RootOptions) *cobra.Command {
	var uid, typ string
	cmd := &cobra.Command{
		Use:   "notify <message>",
		Short: "Send a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := rootOpts.env
			ctx := cmd.Context()
			if uid != "" {
				n, err := env.Notifications.Create(ctx, uid, args[0], typ, notifications.SenderAdmin)
				if err != nil {
					return err
				}
				return output(rootOpts, cmd.OutOrStdout(), "sent "+n.ID, n)
			}
			count, err := env.Notifications.Broadcast(ctx, args[0], typ)
			if err != nil {
				return err
			}
			return output(rootOpts, cmd.OutOrStdout(), fmt.Sprintf("Global notification sent to %d users.", count), map[string]int{"count": count})
		},
	}
	cmd.Flags().StringVar(&uid, "user", "", "recipient uid; everyone when empty")
	cmd.Flags().StringVar(&typ, "type", models.NotificationInfo, "info|success|warning|error")
	return cmd
}
