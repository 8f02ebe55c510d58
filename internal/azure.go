package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	"github.com/charmbracelet/log"
)

const azureManagementScope = "https://management.azure.com/.default"

type azureSubsAPI interface {
	Get(ctx context.Context, subscriptionID string, options *armsubscriptions.ClientGetOptions) (armsubscriptions.ClientGetResponse, error)
}

var newAzureCredential = func(tenantID string) (azcore.TokenCredential, error) {
	return azidentity.NewDeviceCodeCredential(&azidentity.DeviceCodeCredentialOptions{
		TenantID: tenantID,
		UserPrompt: func(ctx context.Context, message azidentity.DeviceCodeMessage) error {
			fmt.Printf("🔐 %s\n", message.Message)
			return nil
		},
	})
}

var newAzureSubsAPI = func(cred azcore.TokenCredential) (azureSubsAPI, error) {
	return armsubscriptions.NewClient(cred, nil)
}

// azureStrategy activates an Azure subscription session: a device-code
// login against the session's tenant, then a subscription lookup to verify
// access. Azure sessions produce no AWS credentials, so apply/de-apply do
// not touch the credentials file.
type azureStrategy struct {
	workspace *Workspace
	vault     SecretVault
}

func (s *azureStrategy) GenerateCredentials(ctx context.Context, sess *Session) (*CredentialsInfo, error) {
	cred, err := newAzureCredential(sess.TenantID)
	if err != nil {
		return nil, &StsError{Op: "create azure credential", Err: err}
	}

	token, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{azureManagementScope}})
	if err != nil {
		return nil, &StsError{Op: "azure device login", Err: err}
	}

	client, err := newAzureSubsAPI(cred)
	if err != nil {
		return nil, &StsError{Op: "load subscriptions client", Err: err}
	}
	resp, err := client.Get(ctx, sess.SubscriptionID, nil)
	if err != nil {
		return nil, &StsError{Op: "get subscription", Err: err}
	}
	if resp.DisplayName != nil {
		log.Debug("azure subscription verified", "subscription", *resp.DisplayName)
	}

	if err := s.vault.SaveSecret(VaultService, vaultKeyAzureTokenPrefix+sess.ID, token.Token); err != nil {
		return nil, err
	}
	return &CredentialsInfo{}, nil
}

func (s *azureStrategy) ApplyCredentials(sess *Session, creds *CredentialsInfo) error {
	return nil
}

func (s *azureStrategy) DeApplyCredentials(sess *Session) error {
	return nil
}

func (s *azureStrategy) RemoveSecrets(sessionID string) error {
	err := s.vault.DeletePassword(VaultService, vaultKeyAzureTokenPrefix+sessionID)
	if err != nil && !errors.Is(err, ErrSecretNotFound) {
		return err
	}
	return nil
}
