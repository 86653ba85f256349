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

// CustomerRepo provides typed DynamoDB operations for the customers table.
// PK: customer_id (N). GSIs: email-index, phone_number-index.
type CustomerRepo struct {
	client    *dynamodb.Client
	tableName string
	counters  *CounterRepo
}

func NewCustomerRepo(client *dynamodb.Client, tableName string, counters *CounterRepo) *CustomerRepo {
	return &CustomerRepo{client: client, tableName: tableName, counters: counters}
}

// Create assigns the next customer_id and writes the record. Fails with
// ErrConflict when the email is already registered.
func (r *CustomerRepo) Create(ctx context.Context, c *domain.Customer) error {
	if _, err := r.GetByEmail(ctx, c.Email); err == nil {
		return fmt.Errorf("email %s: %w", c.Email, domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	id, err := r.counters.Next(ctx, "customer_id")
	if err != nil {
		return err
	}
	c.CustomerID = id
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(customer_id)"),
	})
	return err
}

func (r *CustomerRepo) Get(ctx context.Context, customerID int64) (*domain.Customer, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       numKey("customer_id", customerID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("customer not found: %w", domain.ErrNotFound)
	}
	var c domain.Customer
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepo) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	items, err := r.queryGSI(ctx, "email-index", "email", email, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("customer not found: %w", domain.ErrNotFound)
	}
	return &items[0], nil
}

// FindByPhone returns every customer whose stored phone_number equals one of
// the given spellings.
func (r *CustomerRepo) FindByPhone(ctx context.Context, variants []string) ([]domain.Customer, error) {
	var out []domain.Customer
	seen := make(map[int64]struct{})
	for _, v := range variants {
		items, err := r.queryGSI(ctx, "phone_number-index", fieldPhoneNumber, v, 0)
		if err != nil {
			return nil, err
		}
		for _, c := range items {
			if _, dup := seen[c.CustomerID]; dup {
				continue
			}
			seen[c.CustomerID] = struct{}{}
			out = append(out, c)
		}
	}
	return out, nil
}

// SetPhone writes the customer profile phone and its verified flag.
func (r *CustomerRepo) SetPhone(ctx context.Context, customerID int64, phone string, verified bool) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldPhoneNumber:   phone,
		fieldPhoneVerified: verified,
		fieldUpdatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       numKey("customer_id", customerID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(customer_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("customer %d: %w", customerID, domain.ErrNotFound)
	}
	return err
}

func (r *CustomerRepo) queryGSI(ctx context.Context, index, attr, value string, limit int32) ([]domain.Customer, error) {
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
	}
	if limit > 0 {
		in.Limit = aws.Int32(limit)
	}
	out, err := r.client.Query(ctx, in)
	if err != nil {
		return nil, err
	}
	var items []domain.Customer
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}
