package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/phone-otp-gate/internal/domain"
)

// kvItem is one short-lived cache entry. DynamoDB TTL deletion is lazy, so
// readers compare ExpiresAt themselves.
type kvItem struct {
	Key       string `dynamodbav:"k"`
	Value     []byte `dynamodbav:"v"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

func (i kvItem) expired(nowUnix int64) bool {
	return i.ExpiresAt > 0 && i.ExpiresAt <= nowUnix
}

// KVStore implements domain.KeyValueStore on a TTL-enabled table.
// PK: k
type KVStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewKVStore(client *dynamodb.Client, tableName string) *KVStore {
	return &KVStore{client: client, tableName: tableName}
}

func (s *KVStore) Save(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	it := kvItem{Key: key, Value: value}
	if ttl > 0 {
		it.ExpiresAt = time.Now().Add(ttl).Unix()
	}
	item, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshal kv item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	return err
}

func (s *KVStore) Load(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            strKey("k", key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	return s.decode(key, out.Item)
}

func (s *KVStore) Remove(ctx context.Context, keys ...string) error {
	var errs []error
	for _, k := range keys {
		if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key:       strKey("k", k),
		}); err != nil {
			errs = append(errs, fmt.Errorf("delete %q: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

// Take deletes the item and returns its old image; DynamoDB serializes
// deletes on one key so only one caller receives the attributes.
func (s *KVStore) Take(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.tableName),
		Key:          strKey("k", key),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, err
	}
	return s.decode(key, out.Attributes)
}

func (s *KVStore) decode(key string, item map[string]types.AttributeValue) ([]byte, error) {
	if item == nil {
		return nil, fmt.Errorf("key %q: %w", key, domain.ErrNotFound)
	}
	var it kvItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return nil, err
	}
	if it.expired(time.Now().Unix()) {
		return nil, fmt.Errorf("key %q: %w", key, domain.ErrNotFound)
	}
	return it.Value, nil
}
