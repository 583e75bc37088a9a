// Command e3kit-server hosts the reference card directory and cloud key
// store, and issues bearer tokens for them.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultsandbox/e3kit-go/internal/config"
	"github.com/vaultsandbox/e3kit-go/internal/logging"
	"github.com/vaultsandbox/e3kit-go/internal/server"
	"github.com/vaultsandbox/e3kit-go/internal/storage"
	"github.com/vaultsandbox/e3kit-go/internal/token"
)

// IO holds the streams the commands write to.
type IO struct {
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultIO returns the process streams.
func DefaultIO() IO {
	return IO{Stdout: os.Stdout, Stderr: os.Stderr}
}

type rootOptions struct {
	configPath string
	envFile    string
}

func run(ctx context.Context, args []string, stdio IO) error {
	root := newRootCommand(stdio)
	root.SetArgs(args)
	root.SetOut(stdio.Stdout)
	root.SetErr(stdio.Stderr)
	return root.ExecuteContext(ctx)
}

func newRootCommand(stdio IO) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "e3kit-server",
		Short:         "Reference directory and cloud key store for e3kit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with E3KIT_* overrides")

	cmd.AddCommand(newServeCommand(opts, stdio))
	cmd.AddCommand(newTokenCommand(opts, stdio))
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.configPath, o.envFile)
}

func newServeCommand(opts *rootOptions, stdio IO) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the directory and cloud key store API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			return serve(cmd.Context(), cfg, stdio.Stderr)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logOut io.Writer) error {
	log, err := newLogger(cfg, logOut)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	issuer, err := token.NewIssuer([]byte(cfg.Auth.Secret), cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Store:       store,
		Issuer:      issuer,
		Logger:      log,
		ReadRPS:     cfg.RateLimit.RPS,
		ReadBurst:   cfg.RateLimit.Burst,
		ReadIdleTTL: cfg.RateLimit.IdleTTL,
	})
	if err != nil {
		return err
	}

	log.Info("starting", "storage", cfg.Storage.Driver, "listen", cfg.Listen)
	return srv.ListenAndServe(ctx, cfg.Listen, cfg.ShutdownTimeout)
}

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(w, level, logging.Format(cfg.Log.Format)), nil
}

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	var store storage.Store
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := storage.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		store = storage.NewMemory()
	}

	if cfg.CacheSize <= 0 {
		return store, nil
	}
	cached, err := storage.NewCached(store, cfg.CacheSize)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("card cache: %w", err)
	}
	return cached, nil
}

func newTokenCommand(opts *rootOptions, stdio IO) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <identity>",
		Short: "Issue a bearer token for an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if ttl > 0 {
				cfg.Auth.TokenTTL = ttl
			}
			issuer, err := token.NewIssuer([]byte(cfg.Auth.Secret), cfg.Auth.TokenTTL)
			if err != nil {
				return err
			}
			tok, err := issuer.Issue(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(stdio.Stdout, tok)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (overrides config)")
	return cmd
}
