package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/rgraph/layout"
	"github.com/hupe1980/rgraph/model"
)

// Attribute names of the registry table.
const (
	AttrName       = "name"
	AttrDescriptor = "descriptor"
	AttrNames      = "names"
)

// NamesSuffix is appended to a graph name to form the key of the item that
// holds its name tables. Descriptor names may not end with it.
const NamesSuffix = "#names"

// Client is the subset of the DynamoDB API used by Registry.
// *dynamodb.Client satisfies it.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Registry stores descriptors in a DynamoDB table. Each name is written
// with a conditional put, so exactly one of several racing publishers wins.
// Name tables live in a second item keyed name+NamesSuffix; an item holds at
// most 400 KB, which bounds their encoded size.
//
// Table schema:
//   - Partition key: name (string)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name rgraph-layouts \
//	  --attribute-definitions AttributeName=name,AttributeType=S \
//	  --key-schema AttributeName=name,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type Registry struct {
	client Client
	table  string
}

// NewRegistry returns a registry on an existing client.
func NewRegistry(client Client, table string) *Registry {
	return &Registry{client: client, table: table}
}

// New loads the default AWS configuration and returns a registry for table.
func New(ctx context.Context, table string, optFns ...func(*config.LoadOptions) error) (*Registry, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("dynamodb: load aws config: %w", err)
	}
	return NewRegistry(dynamodb.NewFromConfig(cfg), table), nil
}

// Publish implements layout.Registry.
func (r *Registry) Publish(ctx context.Context, name string, d layout.Descriptor) error {
	if strings.HasSuffix(name, NamesSuffix) {
		return fmt.Errorf("dynamodb: name %q ends with reserved suffix %q", name, NamesSuffix)
	}
	if err := d.Validate(); err != nil {
		return err
	}
	rec, err := layout.EncodeRecord(d)
	if err != nil {
		return err
	}
	return r.putOnce(ctx, name, AttrDescriptor, rec)
}

// PublishNames implements layout.NameRegistry.
func (r *Registry) PublishNames(ctx context.Context, name string, names model.Names) error {
	rec, err := layout.EncodeNames(names)
	if err != nil {
		return err
	}
	return r.putOnce(ctx, name+NamesSuffix, AttrNames, rec)
}

func (r *Registry) putOnce(ctx context.Context, key, attr string, rec []byte) error {
	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item: map[string]types.AttributeValue{
			AttrName: &types.AttributeValueMemberS{Value: key},
			attr:     &types.AttributeValueMemberB{Value: rec},
		},
		ConditionExpression: aws.String("attribute_not_exists(#n)"),
		ExpressionAttributeNames: map[string]string{
			"#n": AttrName,
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %q", layout.ErrAlreadyPublished, key)
		}
		return fmt.Errorf("dynamodb: publish %q: %w", key, err)
	}
	return nil
}

func (r *Registry) get(ctx context.Context, key, attr string) ([]byte, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			AttrName: &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb: fetch %q: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%w: %q", layout.ErrNotPublished, key)
	}
	v, ok := out.Item[attr].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("%w: attribute %q missing", model.ErrCorrupt, attr)
	}
	return v.Value, nil
}

// Fetch implements layout.Registry. Reads are strongly consistent.
func (r *Registry) Fetch(ctx context.Context, name string) (layout.Descriptor, error) {
	rec, err := r.get(ctx, name, AttrDescriptor)
	if errors.Is(err, model.ErrCorrupt) {
		return layout.Descriptor{}, fmt.Errorf("%w: %w", layout.ErrInvalidDescriptor, err)
	}
	if err != nil {
		return layout.Descriptor{}, err
	}
	return layout.DecodeRecord(rec)
}

// FetchNames implements layout.NameRegistry. Reads are strongly consistent.
func (r *Registry) FetchNames(ctx context.Context, name string) (model.Names, error) {
	rec, err := r.get(ctx, name+NamesSuffix, AttrNames)
	if err != nil {
		return model.Names{}, err
	}
	return layout.DecodeNames(rec)
}

var _ layout.NameRegistry = (*Registry)(nil)
