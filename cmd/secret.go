package cmd

import (
	"fmt"
	"strings"

	"github.com/Noovolari/leapp-sub001/internal"
	"github.com/Noovolari/leapp-sub001/internal/ui"
	"github.com/spf13/cobra"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage the vault master key",
	Long:  `Manage the encryption key used to protect vaulted credentials and tokens.`,
}

var secretSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate a master key and store it in the keychain",
	Run: func(cmd *cobra.Command, args []string) {
		if !internal.IsMacOS() {
			fmt.Println("❌ Keychain integration is only available on macOS")
			fmt.Println("\n💡 On other platforms, set the key yourself:")
			fmt.Println("   export LEAPP_SECRET=\"your-32-char-encryption-key\"")
			return
		}

		secret, err := internal.SetupKeychain()
		if err != nil {
			fmt.Printf("❌ Failed to set up keychain: %v\n", err)
			return
		}

		fmt.Println("✅ Master key generated and stored in Keychain")
		fmt.Println(strings.Repeat("─", 64))
		fmt.Println(secret)
		fmt.Println(strings.Repeat("─", 64))
		fmt.Println("\n⚠️  KEEP THIS SAFE! You will need it to restore access on another machine.")
	},
}

var secretShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the keychain master key",
	Run: func(cmd *cobra.Command, args []string) {
		if !internal.IsMacOS() {
			fmt.Println("❌ Keychain integration is only available on macOS")
			return
		}

		// OS prompts for re-authentication when the item is requested
		secret, err := internal.GetMasterKey("")
		if err != nil {
			fmt.Println("❌ No master key found in Keychain or it couldn't be accessed.")
			return
		}

		fmt.Println("🔐 Your Leapp Encryption Key:")
		fmt.Println(strings.Repeat("─", 64))
		fmt.Println(secret)
		fmt.Println(strings.Repeat("─", 64))
	},
}

var secretImportCmd = &cobra.Command{
	Use:   "import [key]",
	Short: "Import a master key into the keychain",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if !internal.IsMacOS() {
			fmt.Println("❌ Keychain integration is only available on macOS")
			return
		}

		var key string
		if len(args) > 0 {
			key = args[0]
		} else {
			var err error
			key, err = ui.GetInput("Enter Master Key to Import", "", true)
			if err != nil {
				return
			}
		}

		if key == "" {
			fmt.Println("❌ Master key cannot be empty")
			return
		}

		if err := internal.StoreKeychainSecret(key); err != nil {
			fmt.Printf("❌ Failed to store key: %v\n", err)
			return
		}

		fmt.Println("✅ Master key imported successfully to Keychain!")
	},
}

func init() {
	secretCmd.AddCommand(secretSetupCmd)
	secretCmd.AddCommand(secretShowCmd)
	secretCmd.AddCommand(secretImportCmd)
	rootCmd.AddCommand(secretCmd)
}
