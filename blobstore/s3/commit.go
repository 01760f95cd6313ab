package s3

import (
	"context"
	"errors"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hypergraphs/knng/blobstore"
)

// ErrConcurrentCommit is returned when another writer committed a newer
// snapshot between ReadCurrent and Commit.
var ErrConcurrentCommit = errors.New("s3: concurrent snapshot commit detected")

// DDBClient is the subset of the DynamoDB API the commit store needs.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// CommitStore records which snapshot blob is the current one. S3 has no
// compare-and-swap, so the "current" pointer lives in a DynamoDB item updated
// with a conditional write keyed on a monotonically increasing version.
//
// Table schema: partition key graph_uri (S), attributes version (N) and
// snapshot_key (S).
type CommitStore struct {
	client   DDBClient
	table    string
	graphURI string
}

// NewCommitStore creates a commit store for one graph URI (e.g.
// "s3://bucket/prefix").
func NewCommitStore(client DDBClient, table, graphURI string) *CommitStore {
	return &CommitStore{client: client, table: table, graphURI: graphURI}
}

// ReadCurrent returns the committed snapshot key and its version. A graph
// that has never been committed returns blobstore.ErrNotFound.
func (c *CommitStore) ReadCurrent(ctx context.Context) (string, int64, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.table),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"graph_uri": &types.AttributeValueMemberS{Value: c.graphURI},
		},
	})
	if err != nil {
		return "", 0, err
	}
	if out.Item == nil {
		return "", 0, blobstore.ErrNotFound
	}

	keyAttr, ok := out.Item["snapshot_key"].(*types.AttributeValueMemberS)
	if !ok {
		return "", 0, blobstore.ErrNotFound
	}
	versionAttr, ok := out.Item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return "", 0, blobstore.ErrNotFound
	}
	version, err := strconv.ParseInt(versionAttr.Value, 10, 64)
	if err != nil {
		return "", 0, err
	}
	return keyAttr.Value, version, nil
}

// Commit atomically advances the current pointer to snapshotKey. prevVersion
// must be the version returned by ReadCurrent (0 for a fresh graph); when a
// concurrent writer advanced it first, ErrConcurrentCommit is returned.
func (c *CommitStore) Commit(ctx context.Context, snapshotKey string, prevVersion int64) error {
	item := map[string]types.AttributeValue{
		"graph_uri":    &types.AttributeValueMemberS{Value: c.graphURI},
		"snapshot_key": &types.AttributeValueMemberS{Value: snapshotKey},
		"version":      &types.AttributeValueMemberN{Value: strconv.FormatInt(prevVersion+1, 10)},
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      item,
	}
	if prevVersion == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(graph_uri)")
	} else {
		input.ConditionExpression = aws.String("version = :prev")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberN{Value: strconv.FormatInt(prevVersion, 10)},
		}
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrConcurrentCommit
		}
		return err
	}
	return nil
}
