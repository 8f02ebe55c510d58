package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var stopSecret string

var stopCmd = &cobra.Command{
	Use:   "stop [session]",
	Short: "Stop a session and remove its credentials",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(stopSecret)
		if err != nil {
			printSecretHint()
			return
		}

		id, err := resolveSession(a, args, "Select Session to Stop")
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			return
		}

		if err := a.sessions.Stop(context.Background(), id); err != nil {
			fmt.Printf("❌ Failed to stop session: %v\n", err)
			return
		}
		fmt.Println("✅ Session stopped, credentials removed")
	},
}

func init() {
	stopCmd.Flags().StringVar(&stopSecret, "secret", "", "Master encryption key (or set LEAPP_SECRET env var)")
	rootCmd.AddCommand(stopCmd)
}
