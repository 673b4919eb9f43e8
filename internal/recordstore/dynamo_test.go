package recordstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo records calls and returns canned results.
type fakeDynamo struct {
	batchSizes []int
	updates    []string
	deleteErr  error
	items      []map[string]types.AttributeValue
	// unprocessed is the number of calls that hand every item back.
	unprocessed int
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	sk := in.Key["SK"].(*types.AttributeValueMemberS).Value
	f.updates = append(f.updates, sk)
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return &dynamodb.DeleteItemOutput{}, f.deleteErr
}

func (f *fakeDynamo) Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return &dynamodb.QueryOutput{Items: f.items}, nil
}

func (f *fakeDynamo) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	for _, reqs := range in.RequestItems {
		f.batchSizes = append(f.batchSizes, len(reqs))
	}
	if f.unprocessed > 0 {
		f.unprocessed--
		return &dynamodb.BatchWriteItemOutput{UnprocessedItems: in.RequestItems}, nil
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func TestDynamoBatchChunksDeletes(t *testing.T) {
	fake := &fakeDynamo{}
	g := NewDynamoGateway(fake, "portfolio")

	var reqs []BatchRequest
	for i := 0; i < 60; i++ {
		reqs = append(reqs, DeleteRequest("photos", "p"))
	}
	if err := g.Batch(context.Background(), reqs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.batchSizes) != 3 || fake.batchSizes[0] != 25 || fake.batchSizes[2] != 10 {
		t.Errorf("unexpected batch sizes: %v", fake.batchSizes)
	}
}

func TestDynamoBatchAppliesUpdatesIndividually(t *testing.T) {
	fake := &fakeDynamo{}
	g := NewDynamoGateway(fake, "portfolio")

	reqs := []BatchRequest{
		DeleteRequest("photos", "d1"),
		UpdateRequest("photos", "u1", map[string]any{"position": 0}),
		UpdateRequest("photos", "u2", map[string]any{"position": 1}),
		DeleteRequest("photos", "d2"),
	}
	if err := g.Batch(context.Background(), reqs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.updates) != 2 || fake.updates[0] != "u1" || fake.updates[1] != "u2" {
		t.Errorf("unexpected updates: %v", fake.updates)
	}
	if len(fake.batchSizes) != 2 {
		t.Errorf("expected deletes flushed around updates, got %v", fake.batchSizes)
	}
}

func TestDynamoDeleteMissingIsNotFound(t *testing.T) {
	fake := &fakeDynamo{deleteErr: &types.ConditionalCheckFailedException{}}
	g := NewDynamoGateway(fake, "portfolio")

	err := g.Delete(context.Background(), "photos", "gone")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || !reqErr.NotFound() {
		t.Fatalf("expected not-found RequestError, got %v", err)
	}
}

func TestDynamoQueryLiftsIDAndSorts(t *testing.T) {
	fake := &fakeDynamo{items: []map[string]types.AttributeValue{
		{
			"PK":       &types.AttributeValueMemberS{Value: "photos"},
			"SK":       &types.AttributeValueMemberS{Value: "b"},
			"position": &types.AttributeValueMemberN{Value: "2"},
		},
		{
			"PK": &types.AttributeValueMemberS{Value: "photos"},
			"SK": &types.AttributeValueMemberS{Value: "c"},
		},
		{
			"PK":       &types.AttributeValueMemberS{Value: "photos"},
			"SK":       &types.AttributeValueMemberS{Value: "a"},
			"position": &types.AttributeValueMemberN{Value: "1"},
		},
	}}
	g := NewDynamoGateway(fake, "portfolio")

	recs, err := g.Query(context.Background(), "photos", Query{Where: map[string]any{"folder": "home"}, Order: "position"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ids []string
	for _, r := range recs {
		ids = append(ids, r.ID())
		if _, ok := r["PK"]; ok {
			t.Errorf("PK should not leak into records")
		}
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("unexpected order: %v", ids)
	}
}

func TestDynamoBatchRetriesUnprocessedItems(t *testing.T) {
	fake := &fakeDynamo{unprocessed: 2}
	g := NewDynamoGateway(fake, "portfolio")
	g.retryDelay = 0

	err := g.Batch(context.Background(), []BatchRequest{DeleteRequest("photos", "a"), DeleteRequest("photos", "b")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.batchSizes) != 3 {
		t.Errorf("expected 3 calls, got %v", fake.batchSizes)
	}
}

func TestDynamoBatchFailsWhenItemsStayUnprocessed(t *testing.T) {
	fake := &fakeDynamo{unprocessed: 100}
	g := NewDynamoGateway(fake, "portfolio")
	g.retryDelay = 0

	err := g.Batch(context.Background(), []BatchRequest{DeleteRequest("photos", "a"), DeleteRequest("photos", "b")})
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RequestError, got %v", err)
	}
	if len(fake.batchSizes) != maxBatchAttempts {
		t.Errorf("expected %d attempts, got %d", maxBatchAttempts, len(fake.batchSizes))
	}
}
