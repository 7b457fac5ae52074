package allocation

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/pkg/errors"
)

//DB is our local alias for the dynamo interface
type DB dynamodbiface.DynamoDBAPI

//DynamoStore keeps records in a DynamoDB table with partition key vpcCidrBlock
type DynamoStore struct {
	db    DB
	table string
}

//NewDynamoStore sets up a store on the given table
func NewDynamoStore(db DB, table string) *DynamoStore {
	return &DynamoStore{db: db, table: table}
}

//Get returns a record by its block
func (s *DynamoStore) Get(ctx context.Context, blockCidr string) (*Record, error) {
	out, err := s.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(blockCidr),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get item")
	}

	if out.Item == nil {
		return nil, ErrItemNotExists
	}

	return unmarshalItem(out.Item)
}

//PutIfAbsent puts the record on the condition that the block has no record yet
func (s *DynamoStore) PutIfAbsent(ctx context.Context, rec *Record) error {
	item, err := dynamodbattribute.MarshalMap(rec.Attributes())
	if err != nil {
		return errors.Wrap(err, "failed to marshal item map")
	}

	if _, err = s.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]*string{"#pk": aws.String(AttrBlockCidr)},
		Item:                     item,
	}); err != nil {
		if !isConditionalCheckFailed(err) {
			return errors.Wrap(err, "failed to put item")
		}

		return ErrItemExists
	}

	return nil
}

//UpdateIfOwner binds the record on the condition that it exists and the owner matches
func (s *DynamoStore) UpdateIfOwner(ctx context.Context, blockCidr string, ownerId string, upd Update) (*Record, error) {
	out, err := s.db.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 s.key(blockCidr),
		UpdateExpression:    aws.String("SET #vpc = :vpc"),
		ConditionExpression: aws.String("attribute_exists(#pk) AND #acct = :acct"),
		ExpressionAttributeNames: map[string]*string{
			"#pk":   aws.String(AttrBlockCidr),
			"#acct": aws.String(AttrOwnerId),
			"#vpc":  aws.String(AttrBoundResourceId),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":acct": {S: aws.String(ownerId)},
			":vpc":  {S: aws.String(upd.BoundResourceId)},
		},
		ReturnValues: aws.String(dynamodb.ReturnValueAllNew),
	})
	if err != nil {
		if !isConditionalCheckFailed(err) {
			return nil, errors.Wrap(err, "failed to update item")
		}

		return nil, s.conditionErr(ctx, blockCidr, ownerId)
	}

	return unmarshalItem(out.Attributes)
}

//DeleteIfOwner removes the record on the condition that it exists and the owner matches
func (s *DynamoStore) DeleteIfOwner(ctx context.Context, blockCidr string, ownerId string) error {
	if _, err := s.db.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.table),
		Key:                 s.key(blockCidr),
		ConditionExpression: aws.String("attribute_exists(#pk) AND #acct = :acct"),
		ExpressionAttributeNames: map[string]*string{
			"#pk":   aws.String(AttrBlockCidr),
			"#acct": aws.String(AttrOwnerId),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":acct": {S: aws.String(ownerId)},
		},
	}); err != nil {
		if !isConditionalCheckFailed(err) {
			return errors.Wrap(err, "failed to delete item")
		}

		return s.conditionErr(ctx, blockCidr, ownerId)
	}

	return nil
}

//Close is a no-op, the sdk client holds no resources that need releasing
func (s *DynamoStore) Close() error {
	return nil
}

func (s *DynamoStore) key(blockCidr string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		AttrBlockCidr: {S: aws.String(blockCidr)},
	}
}

// conditionErr tells a missing record from a foreign one after a failed
// conditional write. The write itself was rejected atomically; this read
// only picks the error to report. A record that is back with the expected
// owner was re-created in between and is reported as ErrConflict.
func (s *DynamoStore) conditionErr(ctx context.Context, blockCidr string, ownerId string) error {
	rec, err := s.Get(ctx, blockCidr)
	switch {
	case errors.Cause(err) == ErrItemNotExists:
		return ErrItemNotExists
	case err != nil:
		return errors.Wrap(err, "failed to classify conditional check failure")
	case rec.OwnerId != ownerId:
		return ErrOwnerMismatch
	default:
		return ErrConflict
	}
}

func isConditionalCheckFailed(err error) bool {
	aerr, ok := err.(awserr.Error)
	return ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
}

func unmarshalItem(item map[string]*dynamodb.AttributeValue) (*Record, error) {
	attrs := map[string]string{}
	if err := dynamodbattribute.UnmarshalMap(item, &attrs); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal item")
	}

	rec, err := RecordFromAttributes(attrs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode item")
	}
	return rec, nil
}
