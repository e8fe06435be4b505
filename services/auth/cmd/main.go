// Package main is the entry point for the socialauth command.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/carlossalguero/socialauth/services/auth/internal/config"
	"github.com/carlossalguero/socialauth/services/auth/internal/oauth"
	"github.com/carlossalguero/socialauth/services/auth/internal/social"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:           "socialauth",
		Short:         "Sign in with Google, Facebook, Twitter or Apple",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./socialauth.yaml)")

	root.AddCommand(
		newLoginCommand(func() *config.Config { return cfg }),
		newProvidersCommand(func() *config.Config { return cfg }),
		newServeCommand(func() *config.Config { return cfg }),
	)
	return root
}

func newLoginCommand(cfg func() *config.Config) *cobra.Command {
	var (
		syncProfile bool
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "login <provider>",
		Short: "Run an interactive login and print the user as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := social.ParseProviderKind(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cfg(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer shutdown(a)

			if err := a.start(); err != nil {
				return err
			}

			if timeout == 0 {
				timeout = cfg().Login.Timeout
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := loginContext(ctx, timeout)
			defer cancel()

			presenter := oauth.WriterPresenter(cmd.ErrOrStderr())
			result, err := a.facade.Login(ctx, provider, presenter, nil).Wait(ctx)
			if err != nil {
				return fmt.Errorf("waiting for login: %w", err)
			}
			if !result.Success() {
				return fmt.Errorf("login failed (%s): %w", result.Reason(), result.Err)
			}
			user := result.User

			if syncProfile && provider == social.Facebook {
				synced, err := a.facade.SyncFacebookUserData(ctx, nil).Wait(ctx)
				if err != nil {
					return fmt.Errorf("waiting for profile sync: %w", err)
				}
				if !synced.Success() {
					return fmt.Errorf("profile sync failed (%s): %w", synced.Reason(), synced.Err)
				}
				user = synced.User
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(user)
		},
	}
	cmd.Flags().BoolVar(&syncProfile, "sync-profile", false, "fetch name and email after a Facebook login")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (default login.timeout, 0 there means never)")
	return cmd
}

func newProvidersCommand(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the configured providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range social.AllProviders() {
				if cfg().Providers.Configured(k.String()) {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
			}
			return nil
		},
	}
}

func newServeCommand(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the redirect receiver, /health and /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer shutdown(a)

			if err := a.start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			a.log.Info("shutting down")
			return nil
		},
	}
}

// loginContext bounds a login by timeout. Zero means no deadline.
func loginContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

func shutdown(a *app) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.close(ctx)
}
