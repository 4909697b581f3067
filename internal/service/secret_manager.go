package service

import (
	"context"
	"fmt"

	"velora/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SecretManagerService stores per-user provider API keys.
type SecretManagerService interface {
	StoreUserAPIKey(ctx context.Context, userID, provider, apiKey string) error
	// GetUserAPIKey returns "" when the user has no key for the provider.
	GetUserAPIKey(ctx context.Context, userID, provider string) (string, error)
	DeleteUserAPIKey(ctx context.Context, userID, provider string) error
}

type secretManagerService struct {
	client    *secretmanager.Client
	projectID string
}

func NewSecretManagerService(ctx context.Context, cfg *config.Config) (SecretManagerService, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP_PROJECT_ID is required for Secret Manager")
	}

	var opts []option.ClientOption
	if cfg.GCPCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCPCredentialsFile))
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &secretManagerService{
		client:    client,
		projectID: cfg.GCPProjectID,
	}, nil
}

func userSecretName(userID, provider string) string {
	return fmt.Sprintf("velora-user-%s-%s-key", userID, provider)
}

func (s *secretManagerService) secretPath(userID, provider string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, userSecretName(userID, provider))
}

func (s *secretManagerService) StoreUserAPIKey(ctx context.Context, userID, provider, apiKey string) error {
	secretPath := s.secretPath(userID, provider)

	_, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: secretPath})
	switch {
	case status.Code(err) == codes.NotFound:
		_, err := s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   fmt.Sprintf("projects/%s", s.projectID),
			SecretId: userSecretName(userID, provider),
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
				Labels: map[string]string{"app": "velora", "provider": provider},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create secret: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up secret: %w", err)
	}

	_, err = s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  secretPath,
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(apiKey)},
	})
	if err != nil {
		return fmt.Errorf("failed to add secret version: %w", err)
	}
	return nil
}

func (s *secretManagerService) GetUserAPIKey(ctx context.Context, userID, provider string) (string, error) {
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.secretPath(userID, provider) + "/versions/latest",
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to access secret version: %w", err)
	}
	return string(result.Payload.Data), nil
}

func (s *secretManagerService) DeleteUserAPIKey(ctx context.Context, userID, provider string) error {
	err := s.client.DeleteSecret(ctx, &secretmanagerpb.DeleteSecretRequest{Name: s.secretPath(userID, provider)})
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}
