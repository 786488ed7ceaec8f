package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/presensync/presensync/backend/go-services/internal/auth"
	"github.com/presensync/presensync/backend/go-services/internal/config"
	"github.com/presensync/presensync/backend/go-services/internal/database"
	"github.com/presensync/presensync/backend/go-services/internal/identity"
	"github.com/presensync/presensync/backend/go-services/internal/notifications"
	"github.com/presensync/presensync/backend/go-services/internal/store"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	env *Env
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Env is what the commands operate on.
type Env struct {
	Config        *config.Config
	Store         store.Store
	Auth          *auth.Service
	Mirror        *identity.Mirror
	Syncer        *identity.Synchronizer
	Notifications *notifications.Service

	close func()
}

// NewEnv builds the services over already opened storage.
func NewEnv(cfg *config.Config, st store.Store, creds auth.Repository, attempts auth.AttemptLimiter) *Env {
	return &Env{
		Config:        cfg,
		Store:         st,
		Auth:          auth.NewService(cfg, creds, attempts),
		Mirror:        identity.NewMirror(st),
		Syncer:        identity.NewSynchronizer(st),
		Notifications: notifications.NewService(st),
	}
}

// OpenEnv connects to the configured backends.
func OpenEnv(ctx context.Context, cfg *config.Config) *Env {
	b := database.Open(ctx, cfg, 1)
	env := NewEnv(cfg, b.Store, b.Credentials, b.Attempts)
	env.close = func() { b.Close(context.Background()) }
	return env
}

// Close releases the backends opened by OpenEnv.
func (e *Env) Close() {
	if e != nil && e.close != nil {
		e.close()
	}
}

// NewRootCommand creates the presensyncctl command. A nil env is opened from
// the environment configuration before any subcommand runs.
func NewRootCommand(env *Env) *cobra.Command {
	opts := &RootOptions{env: env}

	cmd := &cobra.Command{
		Use:   "presensyncctl",
		Short: "Operate PresenSync identities and profiles",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Verbose {
				logger.Init("debug")
			}
			if opts.env != nil {
				return nil
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts.env = OpenEnv(cmd.Context(), cfg)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if env == nil {
				opts.env.Close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSignupCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewRepairCommand(opts))
	cmd.AddCommand(NewSetRoleCommand(opts))
	cmd.AddCommand(NewNotifyCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// output prints v as JSON or text as a line.
func output(opts *RootOptions, w io.Writer, text string, v interface{}) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
