package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goWA/config"
	"github.com/MrEthical07/goWA/jwt"
)

func tokenCmd(flags *globalFlags) *cobra.Command {
	var (
		tenant   string
		sessions []string
		scopes   []string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a tenant access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if ttl > 0 {
				cfg.Auth.AccessTTL = ttl
			}
			manager, err := newTokenManager(cfg.Auth)
			if err != nil {
				return err
			}
			token, err := manager.CreateAccess(tenant, sessions, scopes)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant the token is issued to")
	cmd.Flags().StringSliceVar(&sessions, "session", nil, "session ids the token may use (default: all)")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{jwt.ScopeAll}, "granted scopes: sessions, send, read or *")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: auth.access_ttl)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

// newTokenManager builds a jwt.Manager from the auth section. Key files are
// read from disk; ed25519 without a private key yields a verify-only
// manager.
func newTokenManager(auth config.AuthConfig) (*jwt.Manager, error) {
	jcfg := jwt.Config{
		AccessTTL: auth.AccessTTL,
		Issuer:    auth.Issuer,
		Audience:  auth.Audience,
	}
	switch auth.SigningMethod {
	case "hs256":
		if auth.Secret == "" {
			return nil, errors.New("auth.secret is required to issue or verify hs256 tokens")
		}
		jcfg.SigningMethod = jwt.MethodHS256
		jcfg.PrivateKey = []byte(auth.Secret)
	case "ed25519":
		jcfg.SigningMethod = jwt.MethodEd25519
		pub, err := os.ReadFile(auth.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		jcfg.PublicKey = pub
		if auth.PrivateKey != "" {
			priv, err := os.ReadFile(auth.PrivateKey)
			if err != nil {
				return nil, fmt.Errorf("read private key: %w", err)
			}
			jcfg.PrivateKey = priv
		}
	default:
		return nil, fmt.Errorf("unsupported signing method %q", auth.SigningMethod)
	}
	return jwt.NewManager(jcfg)
}
