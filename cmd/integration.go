package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Noovolari/leapp-sub001/internal"
	"github.com/Noovolari/leapp-sub001/internal/ui"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	integrationSecret  string
	integrationAlias   string
	integrationPortal  string
	integrationRegion  string
	integrationBrowser string
	integrationForce   bool
)

var integrationCmd = &cobra.Command{
	Use:   "integration",
	Short: "Manage SSO portal integrations",
	Long:  `Configure SSO portals, log in through the device-authorization flow, and keep local sessions in sync with the portal's account/role catalog.`,
}

var integrationAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Configure a new SSO integration",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(integrationSecret)
		if err != nil {
			printSecretHint()
			return
		}
		if integrationPortal == "" || integrationRegion == "" {
			fmt.Println("❌ --portal and --region are required")
			return
		}

		integ := &internal.SsoIntegration{
			ID:             uuid.NewString(),
			Alias:          integrationAlias,
			PortalURL:      integrationPortal,
			Region:         integrationRegion,
			BrowserOpening: integrationBrowser,
		}
		if integ.Alias == "" {
			integ.Alias = integrationPortal
		}
		if integ.BrowserOpening == "" {
			integ.BrowserOpening = internal.BrowserOpeningInBrowser
		}

		if err := a.workspace.AddIntegration(integ); err != nil {
			fmt.Printf("❌ Failed to add integration: %v\n", err)
			return
		}
		fmt.Printf("✅ Integration '%s' added\n", integ.Alias)
		fmt.Println("\n💡 Log in and import sessions with:")
		fmt.Printf("   leapp integration sync %s\n", integ.Alias)
	},
}

var integrationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured integrations",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(integrationSecret)
		if err != nil {
			printSecretHint()
			return
		}
		integrations, err := a.workspace.ListIntegrations()
		if err != nil {
			fmt.Printf("❌ Failed to list integrations: %v\n", err)
			return
		}
		if len(integrations) == 0 {
			fmt.Println("📭 No integrations configured.")
			return
		}

		fmt.Printf("%-25s %-40s %-15s %s\n", "ALIAS", "PORTAL", "REGION", "TOKEN EXPIRES")
		fmt.Println(strings.Repeat("─", 100))
		for _, integ := range integrations {
			expires := "logged out"
			if integ.AccessTokenExpiration != nil {
				if integ.AccessTokenExpiration.After(time.Now()) {
					expires = integ.AccessTokenExpiration.Format("2006-01-02 15:04:05")
				} else {
					expires = "expired"
				}
			}
			fmt.Printf("%-25s %-40s %-15s %s\n", integ.Alias, integ.PortalURL, integ.Region, expires)
		}
	},
}

var integrationLoginCmd = &cobra.Command{
	Use:   "login <alias>",
	Short: "Log in to an SSO integration",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, integ, ok := resolveIntegration(args[0])
		if !ok {
			return
		}

		if _, err := a.reconciler.Login(context.Background(), integ.ID, integrationForce); err != nil {
			fmt.Printf("❌ Login failed: %v\n", err)
			return
		}
		fmt.Printf("✅ Logged in to '%s'\n", integ.Alias)
	},
}

var integrationSyncCmd = &cobra.Command{
	Use:   "sync <alias>",
	Short: "Reconcile sessions with the portal catalog",
	Long:  `Enumerate every account and role the portal offers, delete local sessions the portal no longer provides, and create sessions for new roles. Locally customized sessions are left untouched.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, integ, ok := resolveIntegration(args[0])
		if !ok {
			return
		}

		result, err := ui.Spin("Syncing portal catalog...", func() (any, error) {
			return a.reconciler.ProvisionSessions(context.Background(), integ.ID)
		})
		if err != nil {
			fmt.Printf("❌ Sync failed: %v\n", err)
			return
		}

		candidates := result.([]*internal.Session)
		for _, sess := range candidates {
			if err := a.sessions.CreateSession(sess); err != nil {
				fmt.Printf("❌ Failed to create session '%s': %v\n", sess.Name, err)
				return
			}
		}
		fmt.Printf("✅ Sync complete: %d new sessions\n", len(candidates))
	},
}

var integrationLogoutCmd = &cobra.Command{
	Use:   "logout <alias>",
	Short: "Log out and delete the integration's sessions",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, integ, ok := resolveIntegration(args[0])
		if !ok {
			return
		}

		if err := a.reconciler.Logout(context.Background(), integ.ID); err != nil {
			fmt.Printf("❌ Logout failed: %v\n", err)
			return
		}
		fmt.Printf("✅ Logged out of '%s', sessions removed\n", integ.Alias)
	},
}

func resolveIntegration(alias string) (*app, *internal.SsoIntegration, bool) {
	a, err := newApp(integrationSecret)
	if err != nil {
		printSecretHint()
		return nil, nil, false
	}
	integrations, err := a.workspace.ListIntegrations()
	if err != nil {
		fmt.Printf("❌ Failed to list integrations: %v\n", err)
		return nil, nil, false
	}
	for _, integ := range integrations {
		if integ.Alias == alias || integ.ID == alias {
			return a, integ, true
		}
	}
	fmt.Printf("❌ Integration '%s' not found\n", alias)
	return nil, nil, false
}

func init() {
	integrationCmd.PersistentFlags().StringVar(&integrationSecret, "secret", "", "Master encryption key (or set LEAPP_SECRET env var)")
	integrationAddCmd.Flags().StringVar(&integrationAlias, "alias", "", "Integration alias")
	integrationAddCmd.Flags().StringVar(&integrationPortal, "portal", "", "SSO portal start URL")
	integrationAddCmd.Flags().StringVar(&integrationRegion, "region", "", "SSO portal region")
	integrationAddCmd.Flags().StringVar(&integrationBrowser, "browser-opening", "", "Verification mode: in-app or in-browser")
	integrationLoginCmd.Flags().BoolVar(&integrationForce, "force", false, "Force a new login even if a token is cached")

	integrationCmd.AddCommand(integrationAddCmd)
	integrationCmd.AddCommand(integrationListCmd)
	integrationCmd.AddCommand(integrationLoginCmd)
	integrationCmd.AddCommand(integrationSyncCmd)
	integrationCmd.AddCommand(integrationLogoutCmd)
	rootCmd.AddCommand(integrationCmd)
}
