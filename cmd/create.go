package cmd

import (
	"fmt"

	"github.com/Noovolari/leapp-sub001/internal"
	"github.com/spf13/cobra"
)

var (
	createSecret  string
	createName    string
	createRegion  string
	createProfile string

	createAccessKey string
	createSecretKey string
	createMfaDevice string

	createRoleArn string
	createIdpArn  string
	createIdpURL  string
	createParent  string

	createSubscriptionID string
	createTenantID       string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new session",
	Long:  `Create a session of a given type. The session starts inactive; activate it with 'leapp start'.`,
}

func newSessionFromFlags(a *app, sessionType internal.SessionType) (*internal.Session, error) {
	if createName == "" {
		return nil, fmt.Errorf("--name is required")
	}
	region := createRegion
	if region == "" {
		var err error
		region, err = a.workspace.DefaultRegion()
		if err != nil {
			return nil, err
		}
	}
	sess := internal.NewSession(createName, sessionType, region)
	if createProfile != "" {
		profileID, err := a.workspace.EnsureProfile(createProfile)
		if err != nil {
			return nil, err
		}
		sess.ProfileID = profileID
	}
	return sess, nil
}

var createIamUserCmd = &cobra.Command{
	Use:   "iam-user",
	Short: "Create an IAM user session (static keys, optional MFA)",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(createSecret)
		if err != nil {
			printSecretHint()
			return
		}
		if createAccessKey == "" || createSecretKey == "" {
			fmt.Println("❌ --access-key and --secret-key are required")
			return
		}

		sess, err := newSessionFromFlags(a, internal.SessionTypeIamUser)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			return
		}
		sess.MfaDevice = createMfaDevice

		if err := a.sessions.CreateSession(sess); err != nil {
			fmt.Printf("❌ Failed to create session: %v\n", err)
			return
		}
		if err := a.sessions.StoreIamUserKeys(sess.ID, createAccessKey, createSecretKey); err != nil {
			fmt.Printf("❌ Failed to store keys: %v\n", err)
			return
		}
		fmt.Printf("✅ IAM user session '%s' created\n", sess.Name)
	},
}

var createChainedCmd = &cobra.Command{
	Use:   "chained",
	Short: "Create a chained role session (assume role via a parent session)",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(createSecret)
		if err != nil {
			printSecretHint()
			return
		}
		if createRoleArn == "" || createParent == "" {
			fmt.Println("❌ --role and --parent are required")
			return
		}

		parentID, err := resolveSession(a, []string{createParent}, "")
		if err != nil {
			fmt.Printf("❌ Parent session: %v\n", err)
			return
		}

		sess, err := newSessionFromFlags(a, internal.SessionTypeIamRoleChained)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			return
		}
		sess.RoleARN = createRoleArn
		sess.ParentSessionID = parentID

		if err := a.sessions.CreateSession(sess); err != nil {
			fmt.Printf("❌ Failed to create session: %v\n", err)
			return
		}
		fmt.Printf("✅ Chained session '%s' created\n", sess.Name)
	},
}

var createFederatedCmd = &cobra.Command{
	Use:   "federated",
	Short: "Create a SAML-federated role session",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(createSecret)
		if err != nil {
			printSecretHint()
			return
		}
		if createRoleArn == "" || createIdpArn == "" || createIdpURL == "" {
			fmt.Println("❌ --role, --idp-arn, and --idp-url are required")
			return
		}

		idpURLID, err := a.workspace.EnsureIdpURL(createIdpURL)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			return
		}

		sess, err := newSessionFromFlags(a, internal.SessionTypeIamRoleFederated)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			return
		}
		sess.RoleARN = createRoleArn
		sess.IdpARN = createIdpArn
		sess.IdpURLID = idpURLID

		if err := a.sessions.CreateSession(sess); err != nil {
			fmt.Printf("❌ Failed to create session: %v\n", err)
			return
		}
		fmt.Printf("✅ Federated session '%s' created\n", sess.Name)
	},
}

var createAzureCmd = &cobra.Command{
	Use:   "azure",
	Short: "Create an Azure subscription session",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(createSecret)
		if err != nil {
			printSecretHint()
			return
		}
		if createSubscriptionID == "" || createTenantID == "" {
			fmt.Println("❌ --subscription and --tenant are required")
			return
		}

		sess, err := newSessionFromFlags(a, internal.SessionTypeAzureSubscription)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			return
		}
		sess.SubscriptionID = createSubscriptionID
		sess.TenantID = createTenantID

		if err := a.sessions.CreateSession(sess); err != nil {
			fmt.Printf("❌ Failed to create session: %v\n", err)
			return
		}
		fmt.Printf("✅ Azure session '%s' created\n", sess.Name)
	},
}

func init() {
	createCmd.PersistentFlags().StringVar(&createSecret, "secret", "", "Master encryption key (or set LEAPP_SECRET env var)")
	createCmd.PersistentFlags().StringVar(&createName, "name", "", "Session name")
	createCmd.PersistentFlags().StringVar(&createRegion, "region", "", "Session region (defaults to workspace default)")
	createCmd.PersistentFlags().StringVar(&createProfile, "profile", "", "Named profile for the credentials file stanza")

	createIamUserCmd.Flags().StringVar(&createAccessKey, "access-key", "", "Long-lived access key id")
	createIamUserCmd.Flags().StringVar(&createSecretKey, "secret-key", "", "Long-lived secret access key")
	createIamUserCmd.Flags().StringVar(&createMfaDevice, "mfa", "", "MFA device ARN (optional)")

	createChainedCmd.Flags().StringVar(&createRoleArn, "role", "", "Role ARN to assume")
	createChainedCmd.Flags().StringVar(&createParent, "parent", "", "Parent session name or id")

	createFederatedCmd.Flags().StringVar(&createRoleArn, "role", "", "Role ARN to assume")
	createFederatedCmd.Flags().StringVar(&createIdpArn, "idp-arn", "", "Identity provider ARN")
	createFederatedCmd.Flags().StringVar(&createIdpURL, "idp-url", "", "Identity provider URL")

	createAzureCmd.Flags().StringVar(&createSubscriptionID, "subscription", "", "Azure subscription id")
	createAzureCmd.Flags().StringVar(&createTenantID, "tenant", "", "Azure tenant id")

	createCmd.AddCommand(createIamUserCmd)
	createCmd.AddCommand(createChainedCmd)
	createCmd.AddCommand(createFederatedCmd)
	createCmd.AddCommand(createAzureCmd)
	rootCmd.AddCommand(createCmd)
}
