package emulators

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDynamoDBImage  = "amazon/dynamodb-local:2.5.2"
	testDynamoDBPort   = "8000"
	testDynamoDBRegion = "us-east-1"
)

// DynamoDBConfig describes DynamoDB Local and the table to create. The table
// is keyed by the string attribute HashKey.
type DynamoDBConfig struct {
	ImageContainer
	TableName string
	HashKey   string
}

func GetDefaultDynamoDBConfig(tableName, hashKey string) DynamoDBConfig {
	return DynamoDBConfig{
		ImageContainer: ImageContainer{Image: testDynamoDBImage, Port: testDynamoDBPort},
		TableName:      tableName,
		HashKey:        hashKey,
	}
}

// SetupDynamoDBLocal starts DynamoDB Local, creates the table and sets dummy
// AWS credentials in the environment so default-config clients can reach it.
// It returns the endpoint URL and a client bound to it.
func SetupDynamoDBLocal(t *testing.T, ctx context.Context, cfg DynamoDBConfig) (string, *dynamodb.Client, func()) {
	t.Helper()
	port := cfg.tcpPort()
	container, addr := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        cfg.Image,
		ExposedPorts: []string{string(port)},
		Cmd:          []string{"-jar", "DynamoDBLocal.jar", "-inMemory", "-sharedDb"},
		WaitingFor:   wait.ForListeningPort(port).WithStartupTimeout(30 * time.Second),
	}, port)
	endpoint := "http://" + addr

	t.Setenv("AWS_ACCESS_KEY_ID", "local")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "local")
	t.Setenv("AWS_REGION", testDynamoDBRegion)

	client := dynamodb.New(dynamodb.Options{
		Region:       testDynamoDBRegion,
		BaseEndpoint: aws.String(endpoint),
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "local", SecretAccessKey: "local"}, nil
		}),
	})

	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(cfg.TableName),
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: aws.String(cfg.HashKey), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: aws.String(cfg.HashKey), KeyType: ddbtypes.KeyTypeHash},
		},
		BillingMode: ddbtypes.BillingModePayPerRequest,
	})
	require.NoError(t, err, "failed to create DynamoDB table")

	return endpoint, client, terminate(ctx, container, "dynamodb")
}
