// AWS Lambda entrypoint: forwards CloudWatch Logs subscription events
// to an Azure Log Analytics workspace.
package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/mosajjal/whatthela/pkg/loganalytics"
	"github.com/mosajjal/whatthela/pkg/provider"
	"github.com/mosajjal/whatthela/pkg/provider/aws"
	"github.com/mosajjal/whatthela/pkg/storage"
	s3storage "github.com/mosajjal/whatthela/pkg/storage/s3"
)

var (
	laClient       *loganalytics.Client
	logSource      provider.LogSource
	failureStorage storage.Backend
	logType        string
	logger         *zap.Logger
)

func init() {
	logger, _ = zap.NewProduction()

	ctx := context.Background()

	// Load AWS config
	region := getEnv("AWS_REGION", "us-east-1")
	var awsCfg awssdk.Config
	var err error
	if getEnv("S3_ACCESS_KEY_ID", "") != "" && getEnv("S3_ACCESS_KEY_SECRET", "") != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(
					getEnv("S3_ACCESS_KEY_ID", ""),
					getEnv("S3_ACCESS_KEY_SECRET", ""),
					"",
				),
			),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(region))
	}
	if err != nil {
		logger.Fatal("unable to load AWS config", zap.Error(err))
	}

	// Get the workspace shared key (potentially from Secrets Manager)
	sharedKey := getEnv("LA_SHARED_KEY", "")
	if strings.HasPrefix(sharedKey, "arn:aws:secretsmanager:") {
		logger.Info("fetching shared key from AWS Secrets Manager")
		secretMgr := secretsmanager.NewFromConfig(awsCfg)
		secret, err := secretMgr.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: awssdk.String(sharedKey),
		})
		if err != nil {
			logger.Fatal("failed to get secret from Secrets Manager", zap.Error(err))
		}
		sharedKey = *secret.SecretString
	}

	logType = getEnv("LA_LOG_TYPE", "CloudWatch")

	laClient, err = loganalytics.New(getEnv("LA_WORKSPACE_ID", ""), sharedKey,
		loganalytics.WithTimeGeneratedField(getEnv("LA_TIME_FIELD", "TimeGenerated")),
		loganalytics.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("unable to create Log Analytics client", zap.Error(err))
	}

	logSource = aws.NewSource()

	if s3URL := getEnv("S3_URL", ""); s3URL != "" {
		failureStorage, err = s3storage.NewStorage(storage.Config{
			Provider: "s3",
			URL:      s3URL,
		}, awsCfg, logger)
		if err != nil {
			logger.Error("failed to set up failure storage", zap.Error(err))
		}
	}

	logger.Info("lambda forwarder initialized", zap.String("logType", logType))
}

// HandleRequest forwards one CloudWatch Logs subscription event.
func HandleRequest(ctx context.Context, event map[string]interface{}) (string, error) {
	records, err := logSource.ParseBatch(ctx, event)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "OK", nil
	}

	if _, err := laClient.SubmitBatch(ctx, records, logType); err != nil {
		logger.Error("failed to submit batch", zap.Int("records", len(records)), zap.Error(err))
		if failureStorage != nil {
			payload, merr := json.Marshal(records)
			if merr == nil {
				if serr := failureStorage.Store(ctx, logType, payload); serr == nil {
					logger.Info("parked failed batch", zap.Int("records", len(records)))
					return "OK", nil
				}
			}
		}
		return "", err
	}

	logger.Info("forwarded records", zap.Int("records", len(records)))
	return "OK", nil
}

func main() {
	lambda.Start(HandleRequest)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
