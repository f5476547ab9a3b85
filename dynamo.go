package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"
)

// DynamoDBClient is the subset of the DynamoDB API the store uses, so tests
// can substitute a fake.
type DynamoDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ DynamoDBClient = (*dynamodb.Client)(nil)

// todoItem is the table row. PartitionKey is the hash key, RowKey the range key.
type todoItem struct {
	PartitionKey string `dynamodbav:"PartitionKey"`
	RowKey       string `dynamodbav:"RowKey"`
	Title        string `dynamodbav:"Title"`
	IsComplete   bool   `dynamodbav:"IsComplete"`
}

func (i todoItem) toModel() ToDo {
	return ToDo{ID: i.RowKey, Title: i.Title, IsComplete: i.IsComplete}
}

// DynamoStore keeps todos in one DynamoDB table under a constant partition.
type DynamoStore struct {
	client DynamoDBClient
	table  string
}

var _ Store = (*DynamoStore)(nil)

func NewDynamoStore(client DynamoDBClient, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

// NewDynamoStoreFromConfig loads AWS credentials from the default chain.
func NewDynamoStoreFromConfig(ctx context.Context, cfg DynamoDBConfig) (*DynamoStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	log.WithField("table", cfg.Table).Info("Using DynamoDB table")
	return NewDynamoStore(client, cfg.Table), nil
}

func itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PartitionKey": &types.AttributeValueMemberS{Value: partitionKey},
		"RowKey":       &types.AttributeValueMemberS{Value: id},
	}
}

func (s *DynamoStore) Get(ctx context.Context, id string) (*ToDo, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            itemKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: loading todo %s: %v", ErrPersistence, id, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var item todoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("%w: decoding todo %s: %v", ErrPersistence, id, err)
	}
	t := item.toModel()
	return &t, nil
}

// queryInput builds the partition query for f. Callers handle f.Empty().
func (s *DynamoStore) queryInput(f Filter) *dynamodb.QueryInput {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PartitionKey = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: partitionKey},
		},
	}
	if f.IncludeCompleted != f.IncludeActive {
		in.FilterExpression = aws.String("IsComplete = :done")
		in.ExpressionAttributeValues[":done"] = &types.AttributeValueMemberBOOL{Value: f.IncludeCompleted}
	}
	return in
}

func (s *DynamoStore) List(ctx context.Context, f Filter) ([]ToDo, error) {
	todos := []ToDo{}
	if f.Empty() {
		return todos, nil
	}

	p := dynamodb.NewQueryPaginator(s.client, s.queryInput(f))
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: listing todos: %v", ErrPersistence, err)
		}
		var items []todoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("%w: decoding todos: %v", ErrPersistence, err)
		}
		for _, i := range items {
			todos = append(todos, i.toModel())
		}
	}
	return todos, nil
}

func (s *DynamoStore) Upsert(ctx context.Context, t ToDo) error {
	av, err := attributevalue.MarshalMap(todoItem{
		PartitionKey: partitionKey,
		RowKey:       t.ID,
		Title:        t.Title,
		IsComplete:   t.IsComplete,
	})
	if err != nil {
		return fmt.Errorf("%w: encoding todo %s: %v", ErrPersistence, t.ID, err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		log.WithError(err).WithField("todo-id", t.ID).Error("Could not save todo")
		return fmt.Errorf("%w: saving todo %s: %v", ErrPersistence, t.ID, err)
	}
	return nil
}

// Delete is unconditional, so a missing id succeeds.
func (s *DynamoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       itemKey(id),
	}); err != nil {
		return fmt.Errorf("%w: deleting todo %s: %v", ErrPersistence, id, err)
	}
	return nil
}

func (s *DynamoStore) Close(context.Context) error { return nil }
