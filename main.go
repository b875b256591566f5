// whatthela reads JSON log records from stdin, one object per line,
// and ships them to an Azure Log Analytics workspace in batches. Failed
// batches can be parked in S3 for later replay.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/mosajjal/whatthela/pkg/loganalytics"
	"github.com/mosajjal/whatthela/pkg/models"
	"github.com/mosajjal/whatthela/pkg/storage"
	s3storage "github.com/mosajjal/whatthela/pkg/storage/s3"
)

var args struct {
	WorkspaceID       string        `arg:"env:LA_WORKSPACE_ID,required"`
	SharedKey         string        `arg:"env:LA_SHARED_KEY,required" help:"base64 workspace key, or an arn:aws:secretsmanager: ARN to fetch it from"`
	LogType           string        `arg:"env:LA_LOG_TYPE" default:"RawLog"`
	TimeField         string        `arg:"env:LA_TIME_FIELD" help:"record field Log Analytics should use as TimeGenerated"`
	BatchSize         int           `arg:"env:LA_BATCH_SIZE" default:"100"`
	HTTPTimeout       time.Duration `arg:"env:LA_HTTP_TIMEOUT" default:"30s"`
	Region            string        `arg:"env:AWS_REGION" default:"ap-southeast-2"`
	S3URL             string        `arg:"env:S3_URL" help:"example: https://YOURBUCKET.s3.ap-southeast-2.amazonaws.com/YOURFOLDER/"`
	S3AccessKeyID     string        `arg:"env:S3_ACCESS_KEY_ID"`
	S3AccessKeySecret string        `arg:"env:S3_ACCESS_KEY_SECRET"`
}

func loadAWSConfig(ctx context.Context) (awssdk.Config, error) {
	// if AccessKeyID or AccessKeySecret is not provided, use the default
	// credentials provider grabbing the role
	if args.S3AccessKeyID == "" || args.S3AccessKeySecret == "" {
		return config.LoadDefaultConfig(ctx, config.WithRegion(args.Region))
	}
	return config.LoadDefaultConfig(ctx,
		config.WithRegion(args.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(args.S3AccessKeyID, args.S3AccessKeySecret, ""),
		),
	)
}

// resolveSharedKey fetches the workspace key from AWS Secrets Manager
// when the configured value is a secret ARN.
func resolveSharedKey(ctx context.Context, awsCfg awssdk.Config, logger *zap.Logger) (string, error) {
	if !strings.HasPrefix(args.SharedKey, "arn:aws:secretsmanager:") {
		return args.SharedKey, nil
	}
	logger.Info("fetching shared key from AWS Secrets Manager")
	secretMgr := secretsmanager.NewFromConfig(awsCfg)
	secret, err := secretMgr.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: awssdk.String(args.SharedKey),
	})
	if err != nil {
		return "", err
	}
	return *secret.SecretString, nil
}

func main() {
	arg.MustParse(&args)

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx := context.Background()

	needsAWS := args.S3URL != "" || strings.HasPrefix(args.SharedKey, "arn:aws:secretsmanager:")
	var awsCfg awssdk.Config
	if needsAWS {
		var err error
		awsCfg, err = loadAWSConfig(ctx)
		if err != nil {
			logger.Fatal("unable to load AWS config", zap.Error(err))
		}
	}

	sharedKey, err := resolveSharedKey(ctx, awsCfg, logger)
	if err != nil {
		logger.Fatal("unable to resolve shared key", zap.Error(err))
	}

	client, err := loganalytics.New(args.WorkspaceID, sharedKey,
		loganalytics.WithHTTPClient(&http.Client{Timeout: args.HTTPTimeout}),
		loganalytics.WithTimeGeneratedField(args.TimeField),
		loganalytics.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("unable to create Log Analytics client", zap.Error(err))
	}

	var failureStorage storage.Backend
	if args.S3URL != "" {
		failureStorage, err = s3storage.NewStorage(storage.Config{
			Provider: "s3",
			URL:      args.S3URL,
		}, awsCfg, logger)
		if err != nil {
			logger.Fatal("unable to set up failure storage", zap.Error(err))
		}
		defer failureStorage.Close()
	} else {
		logger.Info("no S3 URL provided; failed batches will be dropped")
	}

	shipped, parked, dropped := ship(ctx, client, failureStorage, os.Stdin, logger)
	logger.Info("done", zap.Int("shipped", shipped), zap.Int("parked", parked), zap.Int("dropped", dropped))
}

// ship reads JSON objects line by line, groups them into batches and
// submits each batch synchronously. Records in failed batches are
// parked in S3 when a failure backend is configured; otherwise they
// are dropped, as are unparseable lines.
func ship(ctx context.Context, client *loganalytics.Client, failureStorage storage.Backend, in io.Reader, logger *zap.Logger) (shipped, parked, dropped int) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	batch := make([]models.RawRecord, 0, args.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if _, err := client.SubmitBatch(ctx, batch, args.LogType); err != nil {
			logger.Error("failed to submit batch", zap.Int("records", len(batch)), zap.Error(err))
			if parkBatch(ctx, failureStorage, batch, logger) {
				parked += len(batch)
			} else {
				dropped += len(batch)
			}
		} else {
			shipped += len(batch)
		}
		batch = batch[:0]
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec models.RawRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			logger.Warn("skipping unparseable line", zap.Error(err))
			dropped++
			continue
		}
		batch = append(batch, rec)
		if len(batch) >= args.BatchSize {
			flush()
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		logger.Error("error reading input", zap.Error(err))
	}
	return shipped, parked, dropped
}

func parkBatch(ctx context.Context, failureStorage storage.Backend, batch []models.RawRecord, logger *zap.Logger) bool {
	if failureStorage == nil {
		return false
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		logger.Error("failed to serialize batch for parking", zap.Error(err))
		return false
	}
	if err := failureStorage.Store(ctx, args.LogType, payload); err != nil {
		logger.Error("failed to park batch in S3", zap.Error(err))
		return false
	}
	return true
}
