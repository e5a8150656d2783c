/*
PURPOSE:
  Bedrock Runtime transport. Sends the same OpenAI-format chat body as the
  HTTP transport through InvokeModel.

REQUIREMENTS:
  User-specified:
  - Benchmark models hosted on Amazon Bedrock.

  Implementation-discovered:
  - The SDK retries failed calls by default. One issued request must be one
    call, so the retryer is replaced with aws.NopRetryer.
  - A custom endpoint (VPC endpoint, local stub) must be configurable.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine.Runner (through the Transport interface)
  - Created by: internal/cli (server.backend = bedrock)

ERROR HANDLING:
  - HTTP-level failures are wrapped in *StatusError with the SDK error kept.

IMPLEMENTATION RULES:
  - Never retry.

USAGE:
  t, err := engine.NewBedrockTransport(ctx, engine.BedrockConfig{Region: "us-west-2"})

SELF-HEALING INSTRUCTIONS:
  - If calls are retried again, check that awsCfg.Retryer is still set.

RELATED FILES:
  - internal/engine/client.go
  - internal/engine/response.go

MAINTENANCE:
  - Update with aws-sdk-go-v2 upgrades.
*/

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/daryltucker/vllm-bench/internal/model"
)

// BedrockConfig holds what is needed to reach Bedrock Runtime.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the regional endpoint when set.
	Endpoint string
}

type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockTransport sends OpenAI-format chat bodies through InvokeModel.
// Works for Bedrock models that accept that schema (DeepSeek, Qwen, gpt-oss).
type BedrockTransport struct {
	client bedrockInvoker
	region string
}

// NewBedrockTransport builds a client. Empty keys fall back to the default
// AWS credential chain (env, shared config, IAM role).
func NewBedrockTransport(ctx context.Context, cfg BedrockConfig) (*BedrockTransport, error) {
	var awsCfg aws.Config
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		loaded, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load default AWS config: %w", err)
		}
		awsCfg = loaded
	} else {
		awsCfg = aws.Config{
			Region:      cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		}
	}

	awsCfg.Retryer = func() aws.Retryer { return aws.NopRetryer{} }

	var optFns []func(*bedrockruntime.Options)
	if cfg.Endpoint != "" {
		optFns = append(optFns, func(o *bedrockruntime.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &BedrockTransport{
		client: bedrockruntime.NewFromConfig(awsCfg, optFns...),
		region: cfg.Region,
	}, nil
}

// Target identifies the region endpoint.
func (t *BedrockTransport) Target() string {
	return "bedrock://" + t.region
}

// Complete invokes spec.Model once.
func (t *BedrockTransport) Complete(ctx context.Context, spec model.RequestSpec) (*Completion, error) {
	body, err := buildChatBody(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	out, err := t.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(spec.Model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) && respErr.HTTPStatusCode() != 0 {
			return nil, fmt.Errorf("%w: %w", &StatusError{Code: respErr.HTTPStatusCode()}, err)
		}
		return nil, err
	}

	c, err := parseCompletion(out.Body, nil)
	if err != nil {
		return nil, err
	}
	c.StatusCode = 200
	return c, nil
}
