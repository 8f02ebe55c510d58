package cmd

import (
	"context"
	"fmt"

	"github.com/Noovolari/leapp-sub001/internal/ui"
	"github.com/spf13/cobra"
)

var rotateSecret string

var rotateCmd = &cobra.Command{
	Use:   "rotate [session]",
	Short: "Refresh the credentials of an active session",
	Long:  `Regenerate an active session's temporary credentials before they expire, without going through the start checks again.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(rotateSecret)
		if err != nil {
			printSecretHint()
			return
		}

		id, err := resolveSession(a, args, "Select Session to Rotate")
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			return
		}

		_, err = ui.Spin("Rotating credentials...", func() (any, error) {
			return nil, a.sessions.Rotate(context.Background(), id)
		})
		if err != nil {
			fmt.Printf("❌ Failed to rotate session: %v\n", err)
			return
		}
		fmt.Println("✅ Credentials rotated")
	},
}

func init() {
	rotateCmd.Flags().StringVar(&rotateSecret, "secret", "", "Master encryption key (or set LEAPP_SECRET env var)")
	rootCmd.AddCommand(rotateCmd)
}
