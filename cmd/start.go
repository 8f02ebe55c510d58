package cmd

import (
	"context"
	"fmt"

	"github.com/Noovolari/leapp-sub001/internal/ui"
	"github.com/spf13/cobra"
)

var startSecret string

var startCmd = &cobra.Command{
	Use:   "start [session]",
	Short: "Start a session and materialize its credentials",
	Long:  `Activate a session: temporary credentials are generated through the session's strategy and written to the AWS credentials file. Any other active session sharing the same profile is stopped first.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(startSecret)
		if err != nil {
			printSecretHint()
			return
		}

		id, err := resolveSession(a, args, "Select Session to Start")
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			return
		}

		_, err = ui.Spin("Generating credentials...", func() (any, error) {
			return nil, a.sessions.Start(context.Background(), id)
		})
		if err != nil {
			fmt.Printf("❌ Failed to start session: %v\n", err)
			return
		}

		fmt.Println("✅ Session started, credentials written")
	},
}

func init() {
	startCmd.Flags().StringVar(&startSecret, "secret", "", "Master encryption key (or set LEAPP_SECRET env var)")
	rootCmd.AddCommand(startCmd)
}
