// Package dynamo stores known-valid addresses and validation results in a
// single DynamoDB table, and archives batch reports to S3.
//
// Items use the generic PK/SK/Data/TTL layout:
//
//	KNOWN#<email>   KNOWN              known-valid entry
//	RESULT#<email>  <time>#<id>        result log entry, one per address
//
// DynamoDB deletes expired items lazily, so reads filter on TTL as well.
package dynamo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ignite/email-validator/internal/domain"
)

const (
	knownPrefix  = "KNOWN#"
	knownSortKey = "KNOWN"
	resultPrefix = "RESULT#"
)

// API is the subset of the DynamoDB client used by Store.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Item is the stored shape of every record in the table.
type Item struct {
	PK   string `dynamodbav:"PK"`
	SK   string `dynamodbav:"SK"`
	Data string `dynamodbav:"Data"`
	TTL  int64  `dynamodbav:"TTL,omitempty"`
}

// Store implements validation.KnownValidStore and validation.ResultLog.
type Store struct {
	client API
	table  string
	now    func() time.Time
}

// NewStore returns a Store writing to table.
func NewStore(client API, table string) *Store {
	return &Store{client: client, table: table, now: time.Now}
}

func (s *Store) live(item Item) bool {
	return item.TTL == 0 || s.now().Unix() < item.TTL
}

func (s *Store) put(ctx context.Context, item Item) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting item to DynamoDB: %w", err)
	}
	return nil
}

// Get returns the known-valid entry for email, or nil.
func (s *Store) Get(ctx context.Context, email string) (*domain.KnownValidEntry, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: knownPrefix + strings.ToLower(email)},
			"SK": &types.AttributeValueMemberS{Value: knownSortKey},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting item from DynamoDB: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item Item
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling item: %w", err)
	}
	if !s.live(item) {
		return nil, nil
	}
	var entry domain.KnownValidEntry
	if err := json.Unmarshal([]byte(item.Data), &entry); err != nil {
		return nil, fmt.Errorf("unmarshaling known-valid entry: %w", err)
	}
	return &entry, nil
}

// Put overwrites the known-valid item for the entry's address.
func (s *Store) Put(ctx context.Context, entry domain.KnownValidEntry, ttl time.Duration) error {
	entry.Email = strings.ToLower(entry.Email)
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling known-valid entry: %w", err)
	}
	return s.put(ctx, Item{
		PK:   knownPrefix + entry.Email,
		SK:   knownSortKey,
		Data: string(data),
		TTL:  s.now().Add(ttl).Unix(),
	})
}

// Append writes one item per distinct address so either can be queried.
func (s *Store) Append(ctx context.Context, entry domain.ResultLogEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling result entry: %w", err)
	}
	sk := entry.ValidatedAt.UTC().Format(time.RFC3339Nano) + "#" + entry.ID
	expires := s.now().Add(ttl).Unix()

	addrs := []string{strings.ToLower(entry.OriginalEmail)}
	if c := strings.ToLower(entry.CorrectedEmail); c != addrs[0] {
		addrs = append(addrs, c)
	}
	for _, addr := range addrs {
		if err := s.put(ctx, Item{PK: resultPrefix + addr, SK: sk, Data: string(data), TTL: expires}); err != nil {
			return err
		}
	}
	return nil
}

// FindByEmail queries every live result item for email, oldest first.
func (s *Store) FindByEmail(ctx context.Context, email string) ([]domain.ResultLogEntry, error) {
	p := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: resultPrefix + strings.ToLower(email)},
		},
	})

	var out []domain.ResultLogEntry
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying DynamoDB: %w", err)
		}
		for _, raw := range page.Items {
			var item Item
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("unmarshaling item: %w", err)
			}
			if !s.live(item) {
				continue
			}
			var entry domain.ResultLogEntry
			if err := json.Unmarshal([]byte(item.Data), &entry); err != nil {
				return nil, fmt.Errorf("unmarshaling result entry: %w", err)
			}
			out = append(out, entry)
		}
	}
	return out, nil
}
