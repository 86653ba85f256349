package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/phone-otp-gate/internal/domain"
)

// AddressVerificationRepo is the per-address phone verification ledger.
// PK: address_id (N). One record per address; writes overwrite.
type AddressVerificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAddressVerificationRepo(client *dynamodb.Client, tableName string) *AddressVerificationRepo {
	return &AddressVerificationRepo{client: client, tableName: tableName}
}

func (r *AddressVerificationRepo) Upsert(ctx context.Context, v *domain.AddressPhoneVerification) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal address verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *AddressVerificationRepo) Get(ctx context.Context, addressID int64) (*domain.AddressPhoneVerification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       numKey("address_id", addressID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("address verification not found: %w", domain.ErrNotFound)
	}
	var v domain.AddressPhoneVerification
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
