package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var deleteSecret string

var deleteCmd = &cobra.Command{
	Use:     "delete [session]",
	Aliases: []string{"rm"},
	Short:   "Delete a session and its chained children",
	Long:    `Remove a session from the workspace. Active sessions are stopped first; chained child sessions and vaulted secrets are removed as well.`,
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(deleteSecret)
		if err != nil {
			printSecretHint()
			return
		}

		id, err := resolveSession(a, args, "Select Session to Delete")
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			return
		}

		fmt.Print("⚠️  This also deletes chained child sessions. Type 'yes' to confirm: ")
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		if strings.TrimSpace(input) != "yes" {
			fmt.Println("❌ Operation cancelled.")
			return
		}

		if err := a.sessions.Delete(context.Background(), id); err != nil {
			fmt.Printf("❌ Failed to delete session: %v\n", err)
			return
		}
		fmt.Println("✅ Session deleted")
	},
}

func init() {
	deleteCmd.Flags().StringVar(&deleteSecret, "secret", "", "Master encryption key (or set LEAPP_SECRET env var)")
	rootCmd.AddCommand(deleteCmd)
}
