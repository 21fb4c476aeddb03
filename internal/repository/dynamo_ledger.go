package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

// DynamoRevocationLedger stores revocation markers in a single-table layout
// (PK REVOKED_TOKEN#<jti>, SK METADATA) with a TTL attribute so DynamoDB
// expires them alongside the tokens they invalidate.
type DynamoRevocationLedger struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewDynamoRevocationLedger(client *dynamodb.Client, tableName string, logger *logrus.Logger) *DynamoRevocationLedger {
	return &DynamoRevocationLedger{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

type revokedTokenItem struct {
	JTI       string `dynamodbav:"jti"`
	RevokedAt string `dynamodbav:"revoked_at"`
	TTL       int64  `dynamodbav:"TTL"`
}

func (l *DynamoRevocationLedger) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	item, err := attributevalue.MarshalMap(revokedTokenItem{
		JTI:       jti,
		RevokedAt: time.Now().Format(time.RFC3339),
		TTL:       expiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal revocation marker: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: fmt.Sprintf("REVOKED_TOKEN#%s", jti)}
	item["SK"] = &types.AttributeValueMemberS{Value: "METADATA"}

	// Writes for the same jti are identical apart from the timestamp, so a
	// plain PutItem keeps Revoke idempotent.
	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item:      item,
	})

	if err != nil {
		l.logger.WithError(err).Error("Failed to store revocation marker in DynamoDB")
		return fmt.Errorf("failed to store revocation marker: %w", err)
	}

	return nil
}

func (l *DynamoRevocationLedger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	result, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("REVOKED_TOKEN#%s", jti)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})

	if err != nil {
		return false, fmt.Errorf("failed to check revocation marker: %w", err)
	}

	return result.Item != nil, nil
}
