package state

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"points-miner/internal/types"
)

// DynamoDBAPI is the subset of the DynamoDB client the manager uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoDBManager stores one progress item per streamer, keyed by username.
type DynamoDBManager struct {
	client    DynamoDBAPI
	tableName string
	logger    *zap.Logger
}

func NewDynamoDBManager(client DynamoDBAPI, tableName string, logger *zap.Logger) *DynamoDBManager {
	return &DynamoDBManager{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (m *DynamoDBManager) SaveProgress(ctx context.Context, progress []types.Progress) error {
	for _, p := range progress {
		item, err := attributevalue.MarshalMap(p)
		if err != nil {
			return fmt.Errorf("failed to marshal progress for %s: %w", p.Username, err)
		}

		_, err = m.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(m.tableName),
			Item:      item,
		})
		if err != nil {
			return fmt.Errorf("failed to save progress for %s: %w", p.Username, err)
		}
	}
	return nil
}

func (m *DynamoDBManager) DeleteProgress(ctx context.Context, username string) error {
	_, err := m.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]ddbtypes.AttributeValue{
			"username": &ddbtypes.AttributeValueMemberS{Value: username},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}

// ListProgress scans the whole table. Items that fail to decode are skipped.
func (m *DynamoDBManager) ListProgress(ctx context.Context) ([]types.Progress, error) {
	paginator := dynamodb.NewScanPaginator(m.client, &dynamodb.ScanInput{
		TableName: aws.String(m.tableName),
	})

	var progress []types.Progress
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		for _, item := range page.Items {
			var p types.Progress
			if err := attributevalue.UnmarshalMap(item, &p); err != nil || p.Username == "" {
				m.logger.Warn("Skipping unreadable progress item", zap.Error(err))
				continue
			}
			progress = append(progress, p)
		}
	}
	return progress, nil
}

// PruneProgress deletes stored progress for every username not in keep.
// Usernames compare case-insensitively.
func (m *DynamoDBManager) PruneProgress(ctx context.Context, keep []string) (int, error) {
	stored, err := m.ListProgress(ctx)
	if err != nil {
		return 0, err
	}

	tracked := make(map[string]struct{}, len(keep))
	for _, username := range keep {
		tracked[strings.ToLower(username)] = struct{}{}
	}

	pruned := 0
	for _, p := range stored {
		if _, ok := tracked[strings.ToLower(p.Username)]; ok {
			continue
		}
		if err := m.DeleteProgress(ctx, p.Username); err != nil {
			return pruned, fmt.Errorf("failed to prune %s: %w", p.Username, err)
		}
		pruned++
	}
	if pruned > 0 {
		m.logger.Info("Pruned progress of untracked streamers", zap.Int("count", pruned))
	}
	return pruned, nil
}
