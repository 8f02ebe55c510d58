package internal

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/charmbracelet/log"
)

// samlAssertionConsumerURL is the endpoint the identity provider POSTs the
// assertion to once the user is authenticated.
const samlAssertionConsumerURL = "https://signin.aws.amazon.com/saml"

// samlInterceptWindow bounds how long we wait for the assertion POST.
const samlInterceptWindow = 3 * time.Minute

// idpLoginURLPatterns detect that the provider is asking the user to log
// in, i.e. existing cookies did not satisfy authentication.
var idpLoginURLPatterns = []string{
	".onelogin.com/login",
	"login.microsoftonline.com",
	"accounts.google.com/ServiceLogin",
	"signin.aws.amazon.com/oauth",
	"auth0.com/login",
}

// iamFederatedStrategy drives a browser window through an identity
// provider, captures the SAML assertion posted to the consumer endpoint,
// and exchanges it for temporary credentials.
type iamFederatedStrategy struct {
	baseStrategy
	window        WindowPresenter
	tokenDuration time.Duration
}

func (s *iamFederatedStrategy) GenerateCredentials(ctx context.Context, sess *Session) (*CredentialsInfo, error) {
	if s.window == nil {
		return nil, &SamlError{Reason: "no browser window presenter configured"}
	}
	idpURL, err := s.workspace.GetIdpURL(sess.IdpURLID)
	if err != nil {
		return nil, err
	}

	assertion, err := s.interceptAssertion(ctx, idpURL)
	if err != nil {
		return nil, err
	}

	client, err := newStsAPI(ctx, sess.Region, aws.AnonymousCredentials{})
	if err != nil {
		return nil, &StsError{Op: "load sts client", Err: err}
	}
	out, err := client.AssumeRoleWithSAML(ctx, &sts.AssumeRoleWithSAMLInput{
		PrincipalArn:    aws.String(sess.IdpARN),
		RoleArn:         aws.String(sess.RoleARN),
		SAMLAssertion:   aws.String(assertion),
		DurationSeconds: aws.Int32(int32(s.tokenDuration.Seconds())),
	})
	if err != nil {
		return nil, &StsError{Op: "assume role with saml", Err: err}
	}

	return &CredentialsInfo{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
	}, nil
}

// interceptAssertion opens the idp URL hidden and watches navigations.
// If the provider bounces to a login page the window is shown so the user
// can authenticate; the assertion is captured from the POST to the SAML
// consumer endpoint.
func (s *iamFederatedStrategy) interceptAssertion(ctx context.Context, idpURL string) (string, error) {
	w, err := s.window.Open(idpURL, false, "Federated login")
	if err != nil {
		return "", &SamlError{Reason: err.Error()}
	}
	defer w.Close()

	timeout := time.NewTimer(samlInterceptWindow)
	defer timeout.Stop()

	for {
		select {
		case nav, ok := <-w.Navigations():
			if !ok {
				return "", &SamlError{Reason: "browser window stopped reporting navigations"}
			}
			if needsAuthentication(nav.URL) {
				log.Debug("cookies did not satisfy idp, showing login window", "url", nav.URL)
				w.Show()
				continue
			}
			if strings.HasPrefix(nav.URL, samlAssertionConsumerURL) {
				assertion := nav.PostData.Get("SAMLResponse")
				if assertion == "" {
					return "", &SamlError{Reason: "consumer endpoint POST carried no assertion"}
				}
				return assertion, nil
			}
		case <-w.Closed():
			return "", &SamlError{Reason: "login window closed before an assertion was produced"}
		case <-timeout.C:
			return "", &SamlError{Reason: "no assertion intercepted within the allowed window"}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func needsAuthentication(navURL string) bool {
	for _, pattern := range idpLoginURLPatterns {
		if strings.Contains(navURL, pattern) {
			return true
		}
	}
	return false
}
