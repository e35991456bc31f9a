package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"example.com/prestige-worldwide/backend/internal/cache"
	"example.com/prestige-worldwide/backend/internal/models"
)

// Записи живут дольше окна свежести, чтобы чтение latest-wins не видело дыр.
const dynamoRecordTTL = 7 * 24 * time.Hour

// dynamodbAPI: минимальная часть клиента DynamoDB, нужная кэшу.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoCacheRepository хранит записи кэша в таблице DynamoDB с ключами PK/SK.
// SK начинается с времени получения, поэтому последняя запись читается одним Query.
type DynamoCacheRepository struct {
	api       dynamodbAPI
	tableName string
}

type dynamoCacheItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	ID        string `dynamodbav:"id"`
	UserID    string `dynamodbav:"userId"`
	Kind      string `dynamodbav:"kind"`
	Items     string `dynamodbav:"items"`
	FetchedAt string `dynamodbav:"fetchedAt"`
	TTL       int64  `dynamodbav:"ttl"`
}

// NewDynamoCacheRepository создает репозиторий поверх клиента DynamoDB.
func NewDynamoCacheRepository(api dynamodbAPI, tableName string) (*DynamoCacheRepository, error) {
	if api == nil {
		return nil, errors.New("repository: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoCacheRepository{api: api, tableName: tableName}, nil
}

func cachePK(userID uuid.UUID, kind models.Kind) string {
	return "USER#" + userID.String() + "#KIND#" + string(kind)
}

func cacheSK(fetchedAt time.Time, id uuid.UUID) string {
	return fetchedAtKey(fetchedAt) + "#" + id.String()
}

// fetchedAtKey дает строку фиксированной ширины: лексикографический порядок совпадает с временным.
func fetchedAtKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

// Insert добавляет запись. Условие запрещает перезапись существующего ключа.
func (r *DynamoCacheRepository) Insert(ctx context.Context, record models.CacheRecord) error {
	if record.UserID == uuid.Nil || record.Kind == "" {
		return fmt.Errorf("repository: dynamo insert: %w", ErrInvalid)
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	item, err := attributevalue.MarshalMap(dynamoCacheItem{
		PK:        cachePK(record.UserID, record.Kind),
		SK:        cacheSK(record.FetchedAt, record.ID),
		ID:        record.ID.String(),
		UserID:    record.UserID.String(),
		Kind:      string(record.Kind),
		Items:     string(record.Items),
		FetchedAt: fetchedAtKey(record.FetchedAt),
		TTL:       record.FetchedAt.Add(dynamoRecordTTL).Unix(),
	})
	if err != nil {
		return fmt.Errorf("repository: dynamo marshal: %w", err)
	}

	_, err = r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: dynamo insert: %w", err)
	}
	return nil
}

// SelectLatest читает самую свежую запись не старше since.
func (r *DynamoCacheRepository) SelectLatest(ctx context.Context, userID uuid.UUID, kind models.Kind, since time.Time) (models.CacheRecord, error) {
	out, err := r.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND SK >= :since"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":    &types.AttributeValueMemberS{Value: cachePK(userID, kind)},
			":since": &types.AttributeValueMemberS{Value: fetchedAtKey(since)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return models.CacheRecord{}, fmt.Errorf("repository: dynamo query: %w", err)
	}
	if out == nil || len(out.Items) == 0 {
		return models.CacheRecord{}, cache.ErrNotFound
	}

	var item dynamoCacheItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return models.CacheRecord{}, fmt.Errorf("repository: dynamo unmarshal: %w", err)
	}

	return item.record()
}

func (i dynamoCacheItem) record() (models.CacheRecord, error) {
	id, err := uuid.Parse(i.ID)
	if err != nil {
		return models.CacheRecord{}, fmt.Errorf("repository: dynamo id: %w", err)
	}
	userID, err := uuid.Parse(i.UserID)
	if err != nil {
		return models.CacheRecord{}, fmt.Errorf("repository: dynamo user id: %w", err)
	}
	fetchedAt, err := time.Parse(time.RFC3339Nano, i.FetchedAt)
	if err != nil {
		return models.CacheRecord{}, fmt.Errorf("repository: dynamo fetchedAt: %w", err)
	}

	return models.CacheRecord{
		ID:        id,
		UserID:    userID,
		Kind:      models.Kind(i.Kind),
		Items:     []byte(i.Items),
		FetchedAt: fetchedAt,
	}, nil
}
