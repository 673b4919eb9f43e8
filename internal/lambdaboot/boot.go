// Package lambdaboot holds the bootstrap shared by the portfolio entry
// points: AWS clients and the service wiring per record backend.
package lambdaboot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-portfolio/internal/recordstore"
	"github.com/fpang/photo-portfolio/internal/upload"
)

// AWSClients holds the AWS config and the SSM client.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config.
func InitAWS(ctx context.Context) (AWSClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return AWSClients{}, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}, nil
}

// InitS3Storage creates photo storage on bucket. Public URLs use
// publicBaseURL when set and presigned GET URLs otherwise.
func InitS3Storage(cfg aws.Config, bucket, publicBaseURL string) *upload.S3Storage {
	client := s3.NewFromConfig(cfg)
	return upload.NewS3Storage(client, s3.NewPresignClient(client), bucket, publicBaseURL)
}

// InitDynamoGateway creates the DynamoDB record gateway for table.
func InitDynamoGateway(cfg aws.Config, table string) *recordstore.DynamoGateway {
	return recordstore.NewDynamoGateway(dynamodb.NewFromConfig(cfg), table)
}

// SSMAPI is the subset of the SSM client used to read secrets.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, opts ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadBaaSKey fetches the REST store key from SSM Parameter Store.
func LoadBaaSKey(ctx context.Context, client SSMAPI, paramName string) (string, error) {
	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read %s from SSM: %w", paramName, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil || *result.Parameter.Value == "" {
		return "", fmt.Errorf("SSM parameter %s is empty", paramName)
	}
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(start)).Msg("REST store key loaded from SSM")
	return *result.Parameter.Value, nil
}

// restTimeout bounds each call to the hosted REST store.
const restTimeout = 15 * time.Second
