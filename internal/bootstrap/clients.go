package bootstrap

import (
	"context"
	"fmt"

	"velora/internal/config"
	"velora/internal/llm"
	"velora/internal/pubsub"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/rs/zerolog"
)

// NewPublisher returns a Pub/Sub publisher, or a log-only publisher when no
// GCP project is configured.
func NewPublisher(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (pubsub.Publisher, func() error, error) {
	if cfg.GCPProjectID == "" {
		logger.Warn().Msg("GCP_PROJECT_ID not set; events are logged instead of published")
		return pubsub.NewLogPublisher(logger), func() error { return nil }, nil
	}
	p, err := pubsub.NewPublisher(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

// NewLLMClient returns the completion client for LLM_PROVIDER.
func NewLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case config.LLMProviderOpenAI:
		return llm.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	case config.LLMProviderVertex:
		return llm.NewVertexClient(ctx, cfg.GCPProjectID, cfg.VertexLocation, cfg.VertexModel)
	}
	return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
}

// NewS3Client builds the client for the cost report bucket. S3_URL points it
// at an S3-compatible endpoint.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	s3Config, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		return nil, fmt.Errorf("loading S3 config: %w", err)
	}
	return s3.NewFromConfig(s3Config, func(o *s3.Options) {
		if cfg.S3URL != "" {
			o.BaseEndpoint = aws.String(cfg.S3URL)
			o.UsePathStyle = true
		}
	}), nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
