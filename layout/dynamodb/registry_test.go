package dynamodb

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/rgraph/layout"
	"github.com/hupe1980/rgraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDDBClient struct {
	mock.Mock
}

func (m *MockDDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.PutItemOutput), args.Error(1)
}

func (m *MockDDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.GetItemOutput), args.Error(1)
}

func descriptor() layout.Descriptor {
	return layout.Descriptor{
		VPOff: 0, VPSlots: 800, VPBuckets: 79,
		EPOff: 16384, EPSlots: 800, EPBuckets: 79,
		VArrayOff: 32768, VExtOff: 40448, VNum: 80,
		EArrayOff: 42368, EExtOff: 44288, ENum: 80,
	}
}

func TestRegistry_Publish(t *testing.T) {
	client := new(MockDDBClient)
	reg := NewRegistry(client, "layouts")

	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		name, ok := in.Item[AttrName].(*types.AttributeValueMemberS)
		return ok && name.Value == "g1" &&
			aws.ToString(in.TableName) == "layouts" &&
			aws.ToString(in.ConditionExpression) == "attribute_not_exists(#n)"
	})).Return(&dynamodb.PutItemOutput{}, nil).Once()

	require.NoError(t, reg.Publish(t.Context(), "g1", descriptor()))
	client.AssertExpectations(t)
}

func TestRegistry_PublishConflict(t *testing.T) {
	client := new(MockDDBClient)
	reg := NewRegistry(client, "layouts")

	client.On("PutItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}).Once()

	err := reg.Publish(t.Context(), "g1", descriptor())
	require.ErrorIs(t, err, layout.ErrAlreadyPublished)
}

func TestRegistry_Fetch(t *testing.T) {
	rec, err := layout.EncodeRecord(descriptor())
	require.NoError(t, err)

	client := new(MockDDBClient)
	reg := NewRegistry(client, "layouts")

	client.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		name, ok := in.Key[AttrName].(*types.AttributeValueMemberS)
		return ok && name.Value == "g1" && aws.ToBool(in.ConsistentRead)
	})).Return(&dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		AttrName:       &types.AttributeValueMemberS{Value: "g1"},
		AttrDescriptor: &types.AttributeValueMemberB{Value: rec},
	}}, nil).Once()
	client.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		name, ok := in.Key[AttrName].(*types.AttributeValueMemberS)
		return ok && name.Value == "missing"
	})).Return(&dynamodb.GetItemOutput{}, nil).Once()
	client.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		name, ok := in.Key[AttrName].(*types.AttributeValueMemberS)
		return ok && name.Value == "broken"
	})).Return(nil, errors.New("throttled")).Once()

	got, err := reg.Fetch(t.Context(), "g1")
	require.NoError(t, err)
	assert.Equal(t, descriptor(), got)

	_, err = reg.Fetch(t.Context(), "missing")
	require.ErrorIs(t, err, layout.ErrNotPublished)

	_, err = reg.Fetch(t.Context(), "broken")
	require.Error(t, err)
	client.AssertExpectations(t)
}

func TestRegistry_Names(t *testing.T) {
	tables := model.Names{
		EdgeLabels:         map[string]model.Label{"knows": 1},
		VertexPropertyKeys: map[string]model.PropertyKey{"name": 1},
	}
	rec, err := layout.EncodeNames(tables)
	require.NoError(t, err)

	client := new(MockDDBClient)
	reg := NewRegistry(client, "layouts")

	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		name, ok := in.Item[AttrName].(*types.AttributeValueMemberS)
		_, hasNames := in.Item[AttrNames].(*types.AttributeValueMemberB)
		return ok && name.Value == "g1"+NamesSuffix && hasNames
	})).Return(&dynamodb.PutItemOutput{}, nil).Once()
	client.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		name, ok := in.Key[AttrName].(*types.AttributeValueMemberS)
		return ok && name.Value == "g1"+NamesSuffix
	})).Return(&dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		AttrName:  &types.AttributeValueMemberS{Value: "g1" + NamesSuffix},
		AttrNames: &types.AttributeValueMemberB{Value: rec},
	}}, nil).Once()
	client.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		name, ok := in.Key[AttrName].(*types.AttributeValueMemberS)
		return ok && name.Value == "bare"+NamesSuffix
	})).Return(&dynamodb.GetItemOutput{}, nil).Once()

	require.NoError(t, reg.PublishNames(t.Context(), "g1", tables))

	got, err := reg.FetchNames(t.Context(), "g1")
	require.NoError(t, err)
	assert.Equal(t, tables, got)

	_, err = reg.FetchNames(t.Context(), "bare")
	require.ErrorIs(t, err, layout.ErrNotPublished)

	t.Run("reserved suffix", func(t *testing.T) {
		err := reg.Publish(t.Context(), "g1"+NamesSuffix, descriptor())
		require.Error(t, err)
	})

	client.AssertExpectations(t)
}
