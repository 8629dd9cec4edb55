package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/providencia/approvals/internal/application/port"
	"github.com/providencia/approvals/internal/domain/entity"
)

const (
	defaultApprovalsTable = "service_approvals"

	tokenIndex = "token-index"
	hashIndex  = "verification_hash-index"
	orderIndex = "service_order_id-created_at-index"

	// Fixed width so created_at sorts lexicographically
	sortableTime = "2006-01-02T15:04:05.000000000Z07:00"
)

type approvalItem struct {
	ID                 string     `dynamodbav:"id"`
	Token              string     `dynamodbav:"token"`
	ServiceOrderID     string     `dynamodbav:"service_order_id"`
	CompanyID          string     `dynamodbav:"company_id"`
	Type               string     `dynamodbav:"type"`
	Status             string     `dynamodbav:"status"`
	ItemsSnapshot      []lineItem `dynamodbav:"items_snapshot"`
	TotalValue         float64    `dynamodbav:"total_value"`
	Description        string     `dynamodbav:"description"`
	CreatedAt          string     `dynamodbav:"created_at"`
	CreatedBy          string     `dynamodbav:"created_by"`
	RespondedAt        string     `dynamodbav:"responded_at,omitempty"`
	RejectionReason    string     `dynamodbav:"rejection_reason,omitempty"`
	VerificationHash   string     `dynamodbav:"verification_hash,omitempty"`
	ApprovalMethod     string     `dynamodbav:"approval_method,omitempty"`
	DigitalSignatureID string     `dynamodbav:"digital_signature_id,omitempty"`
	EvidenceID         string     `dynamodbav:"evidence_id,omitempty"`
	ReceiptURL         string     `dynamodbav:"receipt_url,omitempty"`
	IPAddress          string     `dynamodbav:"ip_address,omitempty"`
	UserAgent          string     `dynamodbav:"user_agent,omitempty"`
}

type lineItem struct {
	ID       string  `dynamodbav:"id,omitempty"`
	Name     string  `dynamodbav:"name"`
	Price    float64 `dynamodbav:"price"`
	Severity string  `dynamodbav:"severity,omitempty"`
	Approved bool    `dynamodbav:"approved"`
}

// ApprovalRepository persists ServiceApproval entities in DynamoDB.
//
// Table requirements:
//   - PK: id (string)
//   - GSI token-index: token
//   - GSI verification_hash-index: verification_hash (sparse, pending approvals have none)
//   - GSI service_order_id-created_at-index: service_order_id, created_at
type ApprovalRepository struct {
	ddb       API
	tableName string
	logger    *zap.Logger
}

// NewApprovalRepository creates a DynamoDB backed approval repository
func NewApprovalRepository(ddb API, tableName string, logger *zap.Logger) *ApprovalRepository {
	if tableName == "" {
		tableName = defaultApprovalsTable
	}
	return &ApprovalRepository{
		ddb:       ddb,
		tableName: tableName,
		logger:    logger,
	}
}

// Save writes the whole item, replacing any previous version
func (r *ApprovalRepository) Save(ctx context.Context, a *entity.ServiceApproval) error {
	av, err := attributevalue.MarshalMap(toApprovalItem(a))
	if err != nil {
		return fmt.Errorf("failed to marshal approval: %w", err)
	}

	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		r.logger.Error("Failed to save approval", zap.String("id", a.ID), zap.Error(err))
		return fmt.Errorf("failed to save approval: %w", err)
	}
	return nil
}

// SaveDecision replaces the item only while the stored status is PENDING, so
// a decision racing an earlier one through the lagging token index fails
func (r *ApprovalRepository) SaveDecision(ctx context.Context, a *entity.ServiceApproval) error {
	av, err := attributevalue.MarshalMap(toApprovalItem(a))
	if err != nil {
		return fmt.Errorf("failed to marshal approval: %w", err)
	}

	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("#status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: string(entity.ApprovalStatusPending)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return port.ErrApprovalNotPending
		}
		r.logger.Error("Failed to save approval decision", zap.String("id", a.ID), zap.Error(err))
		return fmt.Errorf("failed to save approval decision: %w", err)
	}
	return nil
}

// List scans the table and returns every approval, newest first
func (r *ApprovalRepository) List(ctx context.Context) ([]*entity.ServiceApproval, error) {
	var (
		out  []*entity.ServiceApproval
		last map[string]types.AttributeValue
	)
	for {
		page, err := r.ddb.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			ExclusiveStartKey: last,
		})
		if err != nil {
			r.logger.Error("Failed to scan approvals", zap.Error(err))
			return nil, fmt.Errorf("failed to list approvals: %w", err)
		}

		items, err := unmarshalApprovals(page.Items)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)

		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		last = page.LastEvaluatedKey
	}

	sortNewestFirst(out)
	return out, nil
}

// GetByID retrieves an approval by ID
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*entity.ServiceApproval, error) {
	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		r.logger.Error("Failed to get approval", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var it approvalItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal approval: %w", err)
	}
	return fromApprovalItem(it), nil
}

// GetByToken retrieves an approval by its public token
func (r *ApprovalRepository) GetByToken(ctx context.Context, token string) (*entity.ServiceApproval, error) {
	return r.first(ctx, tokenIndex, "token", token)
}

// GetByVerificationHash retrieves an approval by hash, across companies
func (r *ApprovalRepository) GetByVerificationHash(ctx context.Context, hash string) (*entity.ServiceApproval, error) {
	if hash == "" {
		return nil, nil
	}
	return r.first(ctx, hashIndex, "verification_hash", hash)
}

// GetLatestByOrderID returns the approval with the greatest created_at for the order
func (r *ApprovalRepository) GetLatestByOrderID(ctx context.Context, orderID string) (*entity.ServiceApproval, error) {
	out, err := r.ddb.Query(ctx, orderQuery(r.tableName, orderID, aws.Int32(1), nil))
	if err != nil {
		r.logger.Error("Failed to query latest approval", zap.String("service_order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to get latest approval: %w", err)
	}

	items, err := unmarshalApprovals(out.Items)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

// ListByOrderID returns the approvals of an order, newest first
func (r *ApprovalRepository) ListByOrderID(ctx context.Context, orderID string) ([]*entity.ServiceApproval, error) {
	var (
		out  []*entity.ServiceApproval
		last map[string]types.AttributeValue
	)
	for {
		page, err := r.ddb.Query(ctx, orderQuery(r.tableName, orderID, nil, last))
		if err != nil {
			r.logger.Error("Failed to query approvals", zap.String("service_order_id", orderID), zap.Error(err))
			return nil, fmt.Errorf("failed to list approvals: %w", err)
		}

		items, err := unmarshalApprovals(page.Items)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)

		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		last = page.LastEvaluatedKey
	}
}

func (r *ApprovalRepository) first(ctx context.Context, index, attr, value string) (*entity.ServiceApproval, error) {
	out, err := r.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(index),
		KeyConditionExpression: aws.String("#k = :v"),
		ExpressionAttributeNames: map[string]string{
			"#k": attr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: value},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		r.logger.Error("Failed to query approval", zap.String("index", index), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}

	items, err := unmarshalApprovals(out.Items)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

func orderQuery(table, orderID string, limit *int32, start map[string]types.AttributeValue) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(table),
		IndexName:              aws.String(orderIndex),
		KeyConditionExpression: aws.String("service_order_id = :oid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":oid": &types.AttributeValueMemberS{Value: orderID},
		},
		ScanIndexForward:  aws.Bool(false),
		Limit:             limit,
		ExclusiveStartKey: start,
	}
}

func unmarshalApprovals(raw []map[string]types.AttributeValue) ([]*entity.ServiceApproval, error) {
	out := make([]*entity.ServiceApproval, 0, len(raw))
	for _, m := range raw {
		var it approvalItem
		if err := attributevalue.UnmarshalMap(m, &it); err != nil {
			return nil, fmt.Errorf("failed to unmarshal approval: %w", err)
		}
		out = append(out, fromApprovalItem(it))
	}
	return out, nil
}

func toApprovalItem(a *entity.ServiceApproval) approvalItem {
	res := a.Flatten()
	it := approvalItem{
		ID:                 a.ID,
		Token:              a.Token,
		ServiceOrderID:     a.ServiceOrderID,
		CompanyID:          a.CompanyID,
		Type:               string(a.Type),
		Status:             string(a.Status),
		ItemsSnapshot:      make([]lineItem, 0, len(a.ItemsSnapshot)),
		TotalValue:         a.TotalValue,
		Description:        a.Description,
		CreatedAt:          a.CreatedAt.UTC().Format(sortableTime),
		CreatedBy:          a.CreatedBy,
		RejectionReason:    a.RejectionReason,
		VerificationHash:   a.VerificationHash,
		ApprovalMethod:     string(res.Method),
		DigitalSignatureID: res.DigitalSignatureID,
		EvidenceID:         res.EvidenceID,
		ReceiptURL:         res.ReceiptURL,
		IPAddress:          res.IPAddress,
		UserAgent:          res.UserAgent,
	}
	if a.RespondedAt != nil {
		it.RespondedAt = a.RespondedAt.UTC().Format(sortableTime)
	}
	for _, li := range a.ItemsSnapshot {
		it.ItemsSnapshot = append(it.ItemsSnapshot, lineItem(li))
	}
	return it
}

func fromApprovalItem(it approvalItem) *entity.ServiceApproval {
	createdAt, _ := time.Parse(sortableTime, it.CreatedAt)
	a := &entity.ServiceApproval{
		ID:               it.ID,
		Token:            it.Token,
		ServiceOrderID:   it.ServiceOrderID,
		CompanyID:        it.CompanyID,
		Type:             entity.ApprovalType(it.Type),
		Status:           entity.ApprovalStatus(it.Status),
		TotalValue:       it.TotalValue,
		Description:      it.Description,
		CreatedAt:        createdAt,
		CreatedBy:        it.CreatedBy,
		RejectionReason:  it.RejectionReason,
		VerificationHash: it.VerificationHash,
	}
	if it.RespondedAt != "" {
		if t, err := time.Parse(sortableTime, it.RespondedAt); err == nil {
			a.RespondedAt = &t
		}
	}
	if len(it.ItemsSnapshot) > 0 {
		a.ItemsSnapshot = make([]entity.ApprovalItem, len(it.ItemsSnapshot))
		for i, li := range it.ItemsSnapshot {
			a.ItemsSnapshot[i] = entity.ApprovalItem(li)
		}
	}
	a.Resolution = entity.ResolutionFields{
		Method:             entity.ApprovalMethod(it.ApprovalMethod),
		DigitalSignatureID: it.DigitalSignatureID,
		EvidenceID:         it.EvidenceID,
		ReceiptURL:         it.ReceiptURL,
		IPAddress:          it.IPAddress,
		UserAgent:          it.UserAgent,
	}.Resolution()
	return a
}

func sortNewestFirst(list []*entity.ServiceApproval) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

// Verify interface compliance
var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
