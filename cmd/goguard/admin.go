package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/password"
	"github.com/spf13/cobra"
)

var errNoVerify = errors.New("credential verification is not available in admin commands")

func generateEd25519() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// withAdminEngine opens the configured store and runs fn against an engine
// that can inspect and clear lockouts but not verify credentials.
func withAdminEngine(cmd *cobra.Command, fn func(context.Context, *goGuard.Engine) error) error {
	cfg, logger, logCloser, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	storeCfg := cfg.Store
	storeCfg.SweepSchedule = ""
	be, err := openBackend(ctx, storeCfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer be.Close(ctx)

	engine, err := goGuard.New().
		WithConfig(engineCfg).
		WithStore(be.store).
		WithVerifier(goGuard.VerifierFunc(func(context.Context, string, string) (*goGuard.Principal, error) {
			return nil, errNoVerify
		})).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	return fn(ctx, engine)
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <identity>",
		Short: "Show the lockout record for an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdminEngine(cmd, func(ctx context.Context, engine *goGuard.Engine) error {
				st, err := engine.Status(ctx, args[0])
				if err != nil {
					return err
				}
				state := "open"
				if st.Locked {
					state = fmt.Sprintf("locked (%ds remaining)", int64((st.RetryAfter+time.Second-1)/time.Second))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "identity: %s\nfailures: %d\nstate: %s\nattempts remaining: %d\n",
					st.Identity, st.Failures, state, st.AttemptsRemaining)
				return nil
			})
		},
	}
}

func newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <identity>",
		Short: "Clear the failure record for an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdminEngine(cmd, func(ctx context.Context, engine *goGuard.Engine) error {
				if err := engine.Unlock(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "unlocked %s\n", strings.TrimSpace(args[0]))
				return nil
			})
		},
	}
}

func newHashSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-secret",
		Short: "Read a secret from stdin and print its Argon2id hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := password.DefaultConfig()
			if m, _ := cmd.Flags().GetUint32("memory"); m > 0 {
				cfg.Memory = m
			}
			if t, _ := cmd.Flags().GetUint32("time"); t > 0 {
				cfg.Time = t
			}
			hasher, err := password.NewArgon2(cfg)
			if err != nil {
				return err
			}

			raw, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 4096))
			if err != nil {
				return fmt.Errorf("read secret: %w", err)
			}
			secret := strings.TrimRight(string(raw), "\r\n")
			hash, err := hasher.Hash(secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().Uint32("memory", 0, "argon2 memory in KiB (default 65536)")
	cmd.Flags().Uint32("time", 0, "argon2 passes (default 3)")
	return cmd
}
