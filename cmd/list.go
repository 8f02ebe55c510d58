package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listSecret string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(listSecret)
		if err != nil {
			printSecretHint()
			return
		}

		sessions, err := a.workspace.ListSessions()
		if err != nil {
			fmt.Printf("❌ Failed to list sessions: %v\n", err)
			return
		}
		if len(sessions) == 0 {
			fmt.Println("📭 No sessions found.")
			fmt.Println("\n💡 Create one with:")
			fmt.Println("   leapp create iam-user --name my-user --access-key ... --secret-key ...")
			return
		}

		fmt.Printf("%-2s %-25s %-20s %-15s %s\n", "", "NAME", "TYPE", "REGION", "STARTED")
		fmt.Println(strings.Repeat("─", 80))
		for _, s := range sessions {
			started := "-"
			if s.StartDateTime != nil {
				started = s.StartDateTime.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-2s %-25s %-20s %-15s %s\n", statusGlyph(s.Status), s.Name, s.Type, s.Region, started)
		}
	},
}

func init() {
	listCmd.Flags().StringVar(&listSecret, "secret", "", "Master encryption key (or set LEAPP_SECRET env var)")
	rootCmd.AddCommand(listCmd)
}
