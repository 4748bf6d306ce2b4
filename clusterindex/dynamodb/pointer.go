// Package dynamodb provides a cluster index version pointer backed by a
// DynamoDB table, for deployments with several concurrent publishers.
//
// Every commit inserts a new row with the next version number under a
// conditional write, so two publishers can never both claim a version.
//
// Table schema:
//   - Partition key: base_uri (string) - identifies the index
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name mrlsearch-index \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/mrlsearch/clusterindex"
)

// Client is the subset of the DynamoDB API the pointer uses.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Pointer implements clusterindex.VersionPointer on DynamoDB.
type Pointer struct {
	client    Client
	tableName string
	baseURI   string
}

var _ clusterindex.VersionPointer = (*Pointer)(nil)

// NewPointer creates a pointer for the index identified by baseURI.
func NewPointer(client Client, tableName, baseURI string) *Pointer {
	return &Pointer{
		client:    client,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// New creates a pointer using the default AWS configuration chain.
func New(ctx context.Context, tableName, baseURI string, optFns ...func(*config.LoadOptions) error) (*Pointer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewPointer(dynamodb.NewFromConfig(cfg), tableName, baseURI), nil
}

// Current implements clusterindex.VersionPointer.
func (p *Pointer) Current(ctx context.Context) (string, error) {
	version, name, err := p.latest(ctx)
	if err != nil {
		return "", err
	}
	if version == 0 {
		return "", clusterindex.ErrNoIndex
	}
	return name, nil
}

// Commit implements clusterindex.VersionPointer. It fails with
// clusterindex.ErrConcurrentModification if another writer committed the
// same version first.
func (p *Pointer) Commit(ctx context.Context, name string) error {
	current, _, err := p.latest(ctx)
	if err != nil {
		return err
	}

	_, err = p.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(p.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: p.baseURI},
			"version":       &types.AttributeValueMemberN{Value: strconv.FormatUint(current+1, 10)},
			"manifest_path": &types.AttributeValueMemberS{Value: name},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return clusterindex.ErrConcurrentModification
		}
		return fmt.Errorf("commit version to dynamodb: %w", err)
	}
	return nil
}

func (p *Pointer) latest(ctx context.Context) (uint64, string, error) {
	resp, err := p.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(p.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: p.baseURI},
		},
		ScanIndexForward: aws.Bool(false), // newest first
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query dynamodb: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in dynamodb")
	}
	pathAttr, ok := item["manifest_path"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid manifest_path attribute in dynamodb")
	}
	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse version: %w", err)
	}
	return version, pathAttr.Value, nil
}
