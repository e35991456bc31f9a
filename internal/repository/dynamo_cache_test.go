package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/prestige-worldwide/backend/internal/cache"
	"example.com/prestige-worldwide/backend/internal/models"
)

// fakeDynamo хранит элементы в памяти и отвечает на Query как таблица с PK/SK.
type fakeDynamo struct {
	items    []map[string]types.AttributeValue
	putErr   error
	queryErr error
	lastPut  *dynamodb.PutItemInput
	lastQry  *dynamodb.QueryInput
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items = append(f.items, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQry = in
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	pk := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
	since := in.ExpressionAttributeValues[":since"].(*types.AttributeValueMemberS).Value

	var latest map[string]types.AttributeValue
	var latestSK string
	for _, item := range f.items {
		if item["PK"].(*types.AttributeValueMemberS).Value != pk {
			continue
		}
		sk := item["SK"].(*types.AttributeValueMemberS).Value
		if sk < since {
			continue
		}
		if latest == nil || sk > latestSK {
			latest, latestSK = item, sk
		}
	}

	if latest == nil {
		return &dynamodb.QueryOutput{}, nil
	}
	return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{latest}}, nil
}

func mustNewDynamoRepo(t *testing.T, api *fakeDynamo) *DynamoCacheRepository {
	t.Helper()
	repo, err := NewDynamoCacheRepository(api, "user_content_cache")
	require.NoError(t, err)
	return repo
}

func TestNewDynamoCacheRepositoryValidation(t *testing.T) {
	_, err := NewDynamoCacheRepository(nil, "table")
	require.Error(t, err)

	_, err = NewDynamoCacheRepository(&fakeDynamo{}, " ")
	require.Error(t, err)
}

// TestDynamoCacheLatestWins проверяет, что из нескольких записей читается последняя.
func TestDynamoCacheLatestWins(t *testing.T) {
	api := &fakeDynamo{}
	repo := mustNewDynamoRepo(t, api)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, models.CacheRecord{UserID: userID, Kind: models.KindNews, Items: []byte(`["old"]`), FetchedAt: base}))
	require.NoError(t, repo.Insert(ctx, models.CacheRecord{UserID: userID, Kind: models.KindNews, Items: []byte(`["new"]`), FetchedAt: base.Add(time.Hour)}))
	require.NoError(t, repo.Insert(ctx, models.CacheRecord{UserID: userID, Kind: models.KindInsight, Items: []byte(`["other"]`), FetchedAt: base.Add(2 * time.Hour)}))

	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *api.lastPut.ConditionExpression)

	record, err := repo.SelectLatest(ctx, userID, models.KindNews, base.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, `["new"]`, string(record.Items))
	require.Equal(t, userID, record.UserID)
	require.True(t, record.FetchedAt.Equal(base.Add(time.Hour)))
	require.False(t, *api.lastQry.ScanIndexForward)
	require.Equal(t, int32(1), *api.lastQry.Limit)
}

// TestDynamoCacheSinceFilter проверяет, что записи старше since не возвращаются.
func TestDynamoCacheSinceFilter(t *testing.T) {
	api := &fakeDynamo{}
	repo := mustNewDynamoRepo(t, api)
	userID := uuid.New()
	fetchedAt := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(context.Background(), models.CacheRecord{UserID: userID, Kind: models.KindNews, Items: []byte(`[]`), FetchedAt: fetchedAt}))

	_, err := repo.SelectLatest(context.Background(), userID, models.KindNews, fetchedAt.Add(time.Second))
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestDynamoCacheErrors(t *testing.T) {
	api := &fakeDynamo{putErr: errors.New("throttled"), queryErr: errors.New("throttled")}
	repo := mustNewDynamoRepo(t, api)

	err := repo.Insert(context.Background(), models.CacheRecord{UserID: uuid.New(), Kind: models.KindNews, FetchedAt: time.Now()})
	require.ErrorContains(t, err, "throttled")

	_, err = repo.SelectLatest(context.Background(), uuid.New(), models.KindNews, time.Now())
	require.ErrorContains(t, err, "throttled")
	require.NotErrorIs(t, err, cache.ErrNotFound)

	err = repo.Insert(context.Background(), models.CacheRecord{Kind: models.KindNews})
	require.ErrorIs(t, err, ErrInvalid)
}
