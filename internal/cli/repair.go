package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/presensync/presensync/backend/go-services/internal/auth"
	"github.com/spf13/cobra"
)

// RepairEntry is the outcome for one account.
type RepairEntry struct {
	UID     string   `json:"uid"`
	Outcome string   `json:"outcome"`
	Wrote   []string `json:"wrote,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// NewRepairCommand runs the profile synchronizer for the given accounts, or
// every account when none is given.
func NewRepairCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair-profiles [uid...]",
		Short: "Create missing profile copies",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := rootOpts.env
			ctx := cmd.Context()
			uids := args
			if len(uids) == 0 {
				all, err := env.Auth.UIDs(ctx)
				if err != nil {
					return fmt.Errorf("list accounts: %w", err)
				}
				uids = all
			}

			var (
				out    []RepairEntry
				failed int
				lines  []string
			)
			for _, uid := range uids {
				e := RepairEntry{UID: uid}
				id, err := env.Auth.Lookup(ctx, uid)
				switch {
				case errors.Is(err, auth.ErrUserNotFound):
					e.Outcome, e.Error = "skipped", "no credential"
				case err != nil:
					e.Outcome, e.Error = "failed", err.Error()
					failed++
				default:
					res, serr := env.Syncer.Sync(ctx, id)
					e.Outcome, e.Wrote = res.Outcome, res.Wrote
					if serr != nil {
						e.Error = serr.Error()
						failed++
					}
				}
				out = append(out, e)
				line := e.UID + " " + e.Outcome
				if len(e.Wrote) > 0 {
					line += " " + strings.Join(e.Wrote, ",")
				}
				if e.Error != "" {
					line += ": " + e.Error
				}
				lines = append(lines, line)
			}
			if err := output(rootOpts, cmd.OutOrStdout(), strings.Join(lines, "\n"), out); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d accounts could not be repaired", failed, len(uids))
			}
			return nil
		},
	}
	return cmd
}
