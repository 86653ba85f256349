package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/phone-otp-gate/internal/domain"
)

// AddressRepo provides typed DynamoDB operations for the customer addresses table.
// PK: address_id (N). GSI: customer_id-index.
type AddressRepo struct {
	client    *dynamodb.Client
	tableName string
	counters  *CounterRepo
}

func NewAddressRepo(client *dynamodb.Client, tableName string, counters *CounterRepo) *AddressRepo {
	return &AddressRepo{client: client, tableName: tableName, counters: counters}
}

// Save writes a; an address without an ID gets the next address_id first.
func (r *AddressRepo) Save(ctx context.Context, a *domain.Address) error {
	if a.AddressID == 0 {
		id, err := r.counters.Next(ctx, "address_id")
		if err != nil {
			return err
		}
		a.AddressID = id
	}
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal address: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *AddressRepo) Get(ctx context.Context, addressID int64) (*domain.Address, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       numKey("address_id", addressID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("address not found: %w", domain.ErrNotFound)
	}
	var a domain.Address
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AddressRepo) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Address, error) {
	var all []domain.Address
	var start map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String("customer_id-index"),
			KeyConditionExpression:    aws.String("customer_id = :cid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":cid": numAttr(customerID)},
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return nil, err
		}
		var page []domain.Address
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return all, nil
		}
		start = out.LastEvaluatedKey
	}
}
