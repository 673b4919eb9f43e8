package recordstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// maxBatchWrite is the DynamoDB BatchWriteItem limit per call.
const maxBatchWrite = 25

// Unprocessed batch items are resent up to maxBatchAttempts times in total,
// doubling the delay between attempts.
const (
	maxBatchAttempts  = 5
	defaultBatchDelay = 50 * time.Millisecond
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoGateway.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoGateway implements Gateway on a single DynamoDB table where the
// partition key is the collection name and the sort key is the record id.
type DynamoGateway struct {
	client    DynamoAPI
	tableName string
	// retryDelay is the first backoff delay for unprocessed batch items.
	retryDelay time.Duration
}

// Compile-time interface check.
var _ Gateway = (*DynamoGateway)(nil)

// NewDynamoGateway creates a DynamoGateway for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoGateway(client DynamoAPI, tableName string) *DynamoGateway {
	return &DynamoGateway{client: client, tableName: tableName, retryDelay: defaultBatchDelay}
}

func recordKey(collection, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: collection},
		"SK": &types.AttributeValueMemberS{Value: id},
	}
}

// storeError converts a DynamoDB error into a *RequestError. A failed
// existence condition is reported as 404.
func storeError(op string, err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return &RequestError{Status: http.StatusNotFound, Message: op + ": record not found", Err: err}
	}
	return &RequestError{Status: http.StatusInternalServerError, Message: op + ": " + err.Error(), Err: err}
}

func (g *DynamoGateway) Query(ctx context.Context, collection string, q Query) ([]Record, error) {
	input := &dynamodb.QueryInput{
		TableName:              &g.tableName,
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: collection},
		},
	}

	if len(q.Where) > 0 {
		names := make(map[string]string, len(q.Where))
		fields := make([]string, 0, len(q.Where))
		for field := range q.Where {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		var conds []string
		for i, field := range fields {
			av, err := attributevalue.Marshal(q.Where[field])
			if err != nil {
				return nil, fmt.Errorf("marshal filter %s: %w", field, err)
			}
			n, v := "#f"+strconv.Itoa(i), ":v"+strconv.Itoa(i)
			names[n] = field
			input.ExpressionAttributeValues[v] = av
			conds = append(conds, n+" = "+v)
		}
		input.ExpressionAttributeNames = names
		input.FilterExpression = aws.String(strings.Join(conds, " AND "))
	}

	var records []Record

	// DynamoDB returns up to 1MB per call; follow LastEvaluatedKey.
	for {
		result, err := g.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, storeError("Query", err))
		}
		for _, item := range result.Items {
			rec, err := itemToRecord(item)
			if err != nil {
				log.Warn().Err(err).Str("collection", collection).Msg("Failed to unmarshal record, skipping")
				continue
			}
			records = append(records, rec)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	if q.Order != "" {
		sortRecords(records, q.Order)
	}
	if q.Limit > 0 && len(records) > q.Limit {
		records = records[:q.Limit]
	}
	return records, nil
}

func (g *DynamoGateway) Create(ctx context.Context, collection string, body map[string]any) (Record, error) {
	id := uuid.NewString()
	rec, err := g.putNew(ctx, collection, id, body)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}
	log.Debug().Str("collection", collection).Str("id", id).Msg("Record created in DynamoDB")
	return rec, nil
}

// putNew writes a new item with id and createdAt, refusing to overwrite.
func (g *DynamoGateway) putNew(ctx context.Context, collection, id string, body map[string]any) (Record, error) {
	rec := make(Record, len(body)+2)
	for k, v := range body {
		rec[k] = v
	}
	rec[FieldCreatedAt] = time.Now().UTC().Format(time.RFC3339Nano)

	item, err := attributevalue.MarshalMap(map[string]any(rec))
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	for k, v := range recordKey(collection, id) {
		item[k] = v
	}

	_, err = g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &g.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(SK)"),
	})
	if err != nil {
		return nil, storeError("PutItem", err)
	}
	rec[FieldID] = id
	return rec, nil
}

func (g *DynamoGateway) Update(ctx context.Context, collection, id string, body map[string]any) error {
	if len(body) == 0 {
		return nil
	}

	fields := make([]string, 0, len(body))
	for field := range body {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	names := make(map[string]string, len(fields))
	values := make(map[string]types.AttributeValue, len(fields))
	sets := make([]string, 0, len(fields))
	for i, field := range fields {
		av, err := attributevalue.Marshal(body[field])
		if err != nil {
			return fmt.Errorf("marshal %s: %w", field, err)
		}
		n, v := "#u"+strconv.Itoa(i), ":u"+strconv.Itoa(i)
		names[n] = field
		values[v] = av
		sets = append(sets, n+" = "+v)
	}

	_, err := g.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &g.tableName,
		Key:                       recordKey(collection, id),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(SK)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, storeError("UpdateItem", err))
	}
	return nil
}

func (g *DynamoGateway) Delete(ctx context.Context, collection, id string) error {
	_, err := g.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           &g.tableName,
		Key:                 recordKey(collection, id),
		ConditionExpression: aws.String("attribute_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, storeError("DeleteItem", err))
	}
	return nil
}

// batchWrite sends one chunk and resends unprocessed items with backoff.
// Items still unprocessed after the last attempt fail the batch.
func (g *DynamoGateway) batchWrite(ctx context.Context, items []types.WriteRequest) error {
	delay := g.retryDelay
	for attempt := 1; ; attempt++ {
		out, err := g.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{g.tableName: items},
		})
		if err != nil {
			return fmt.Errorf("BatchWriteItem (%d items): %w", len(items), storeError("BatchWriteItem", err))
		}
		if out == nil || len(out.UnprocessedItems[g.tableName]) == 0 {
			return nil
		}
		items = out.UnprocessedItems[g.tableName]
		if attempt == maxBatchAttempts {
			return &RequestError{
				Status:  http.StatusServiceUnavailable,
				Message: fmt.Sprintf("BatchWriteItem: %d items unprocessed after %d attempts", len(items), attempt),
			}
		}

		log.Debug().Int("unprocessed", len(items)).Int("attempt", attempt).Msg("Retrying unprocessed batch items")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// Batch applies requests in order. Consecutive deletes and creates are sent
// through BatchWriteItem in chunks of 25; updates need UpdateItem and are
// applied one at a time between chunks.
func (g *DynamoGateway) Batch(ctx context.Context, requests []BatchRequest) error {
	var pending []types.WriteRequest

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := g.batchWrite(ctx, pending); err != nil {
			return err
		}
		pending = nil
		return nil
	}

	for _, req := range requests {
		collection, id, err := parseObjectPath(req.Path)
		if err != nil {
			return err
		}

		switch strings.ToUpper(req.Method) {
		case http.MethodDelete:
			pending = append(pending, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: recordKey(collection, id)},
			})
		case http.MethodPost:
			item, err := attributevalue.MarshalMap(req.Body)
			if err != nil {
				return fmt.Errorf("marshal batch create: %w", err)
			}
			for k, v := range recordKey(collection, uuid.NewString()) {
				item[k] = v
			}
			item[FieldCreatedAt] = &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)}
			pending = append(pending, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		case http.MethodPut:
			if err := flush(); err != nil {
				return err
			}
			if err := g.Update(ctx, collection, id, req.Body); err != nil {
				return err
			}
			continue
		default:
			return fmt.Errorf("unsupported batch method %q", req.Method)
		}

		if len(pending) == maxBatchWrite {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// itemToRecord unmarshals a DynamoDB item and lifts SK into the id field.
func itemToRecord(item map[string]types.AttributeValue) (Record, error) {
	var rec map[string]any
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, err
	}
	if sk, ok := rec["SK"].(string); ok {
		rec[FieldID] = sk
	}
	delete(rec, "PK")
	delete(rec, "SK")
	return Record(rec), nil
}

// sortRecords orders records by a field, "-field" for descending. Records
// missing the field sort last.
func sortRecords(records []Record, order string) {
	desc := strings.HasPrefix(order, "-")
	field := strings.TrimPrefix(order, "-")

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i][field], records[j][field]
		if a == nil || b == nil {
			return a != nil
		}
		less, ok := compareValues(a, b)
		if !ok {
			return false
		}
		if desc {
			greater, _ := compareValues(b, a)
			return greater
		}
		return less
	})
}

func compareValues(a, b any) (bool, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return af < bf, ok
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs, true
	}
	return false, false
}
