package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// iamChainedStrategy assumes a role using the credentials of a parent
// session. The parent is resolved by type through the factory and its
// credentials are generated recursively; the parent does not need to be
// active. No cycle detection is performed on the parent chain.
type iamChainedStrategy struct {
	baseStrategy
	factory         *StrategyFactory
	roleSessionName string
	tokenDuration   time.Duration
}

func (s *iamChainedStrategy) GenerateCredentials(ctx context.Context, sess *Session) (*CredentialsInfo, error) {
	if sess.ParentSessionID == "" {
		return nil, fmt.Errorf("session %q has no parent: %w", sess.Name, ErrNotFound)
	}
	parent, err := s.workspace.GetSession(sess.ParentSessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("parent of session %q: %w", sess.Name, ErrNotFound)
		}
		return nil, err
	}

	parentStrategy, err := s.factory.ForType(parent.Type)
	if err != nil {
		return nil, err
	}
	parentCreds, err := parentStrategy.GenerateCredentials(ctx, parent)
	if err != nil {
		return nil, err
	}

	client, err := newStsAPI(ctx, sess.Region, StaticProvider(parentCreds))
	if err != nil {
		return nil, &StsError{Op: "load sts client", Err: err}
	}

	out, err := client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(sess.RoleARN),
		RoleSessionName: aws.String(s.roleSessionName),
		DurationSeconds: aws.Int32(int32(s.tokenDuration.Seconds())),
	})
	if err != nil {
		return nil, &StsError{Op: "assume role", Err: err}
	}

	return &CredentialsInfo{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
	}, nil
}
