package recordstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/rs/zerolog"
)

// Item attribute names. The table is partitioned on KeyAttribute (type S).
const (
	KeyAttribute     = "messageId"
	ContentAttribute = "content"
)

// DynamoDBAPI is the subset of *dynamodb.Client the writer uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoDBWriter implements Writer with unconditional PutItem calls, which
// replace any existing item with the same partition key.
type DynamoDBWriter struct {
	api       DynamoDBAPI
	tableName string
	logger    zerolog.Logger
}

// NewDynamoDBWriter creates a writer for tableName. The client is shared and
// its lifecycle is managed by the caller.
func NewDynamoDBWriter(api DynamoDBAPI, tableName string, logger zerolog.Logger) (*DynamoDBWriter, error) {
	if api == nil {
		return nil, errors.New("dynamodb client cannot be nil")
	}
	if tableName == "" {
		return nil, fmt.Errorf("%w: dynamodb table name is empty", types.ErrConfiguration)
	}
	return &DynamoDBWriter{
		api:       api,
		tableName: tableName,
		logger:    logger.With().Str("component", "DynamoDBWriter").Str("table_name", tableName).Logger(),
	}, nil
}

// Put implements Writer.
func (w *DynamoDBWriter) Put(ctx context.Context, key, content string) error {
	_, err := w.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(w.tableName),
		Item: map[string]ddbtypes.AttributeValue{
			KeyAttribute:     &ddbtypes.AttributeValueMemberS{Value: key},
			ContentAttribute: &ddbtypes.AttributeValueMemberS{Value: content},
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationException" {
			return fmt.Errorf("%w: dynamodb PutItem for %s: %w", types.ErrRecordRejected, key, err)
		}
		return fmt.Errorf("dynamodb PutItem for %s: %w", key, err)
	}
	w.logger.Debug().Str("key", key).Msg("Item written to DynamoDB.")
	return nil
}

// Check verifies that the table exists and is reachable.
func (w *DynamoDBWriter) Check(ctx context.Context) error {
	_, err := w.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(w.tableName)})
	if err != nil {
		var notFound *ddbtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: dynamodb table %s does not exist", types.ErrConfiguration, w.tableName)
		}
		return fmt.Errorf("dynamodb DescribeTable for %s: %w", w.tableName, err)
	}
	return nil
}

// Close is a no-op as the DynamoDB client holds no connections that need closing.
func (w *DynamoDBWriter) Close() error {
	return nil
}
