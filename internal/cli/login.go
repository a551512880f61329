package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/exponent-ml/exponent/internal/domain"
)

var loginProvider string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with an OAuth provider",
	Long: `Sign in with Google or GitHub. A browser URL is printed; the flow
completes when the provider redirects back to the local callback listener.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored credential for a provider",
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().StringVar(&loginProvider, "provider", "github", "OAuth provider: google or github")
	logoutCmd.Flags().StringVar(&loginProvider, "provider", "github", "OAuth provider: google or github")
}

func parseProvider(s string) (domain.Provider, error) {
	switch s {
	case "google":
		return domain.ProviderGoogle, nil
	case "github":
		return domain.ProviderGitHub, nil
	default:
		return "", fmt.Errorf("unknown provider %q (expected google or github)", s)
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext()
	defer stop()

	provider, err := parseProvider(loginProvider)
	if err != nil {
		return err
	}

	_, orch, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}

	cred, err := orch.Auth().Login(ctx, provider)
	if err != nil {
		return err
	}

	who := cred.UserName
	if who == "" {
		who = string(provider)
	}
	fmt.Printf("Logged in to %s as %s\n", provider, who)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	provider, err := parseProvider(loginProvider)
	if err != nil {
		return err
	}

	ctx, stop := commandContext()
	defer stop()

	_, orch, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}

	if err := orch.Auth().Logout(provider); err != nil {
		return err
	}
	fmt.Printf("Logged out of %s\n", provider)
	return nil
}
