package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/docpress/api/internal/config"
	"github.com/docpress/api/internal/model"
)

// DynamoStore keeps job records in a DynamoDB table keyed by job_id with
// created_at as the range key, one item per record.
type DynamoStore struct {
	db    *dynamodb.Client
	table string
}

// NewDynamoStore creates the store for the configured table. A custom
// endpoint points the client at dynamodb-local.
func NewDynamoStore(cfg *config.JobsConfig) (*DynamoStore, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.EndpointURL != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: cfg.EndpointURL}, nil
		})
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &DynamoStore{db: dynamodb.NewFromConfig(awsCfg), table: cfg.TableName}, nil
}

// Append writes one record.
func (s *DynamoStore) Append(ctx context.Context, record model.JobRecord) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record for job %s: %w", record.JobID, err)
	}

	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store record for job %s: %w", record.JobID, err)
	}
	return nil
}

// Query returns every record written for the job, in storage order.
func (s *DynamoStore) Query(ctx context.Context, jobID string) ([]model.JobRecord, error) {
	var records []model.JobRecord
	var startKey map[string]types.AttributeValue

	for {
		out, err := s.db.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.table),
			KeyConditionExpression: aws.String("job_id = :job_id"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":job_id": &types.AttributeValueMemberS{Value: jobID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query records for job %s: %w", jobID, err)
		}

		var page []model.JobRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal records for job %s: %w", jobID, err)
		}
		records = append(records, page...)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return records, nil
}
