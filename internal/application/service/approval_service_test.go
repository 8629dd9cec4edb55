package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/providencia/approvals/internal/domain/entity"
	"github.com/providencia/approvals/internal/domain/fingerprint"
)

const signatureDataURL = "data:image/png;base64,aGVsbG8="

var (
	baseTime = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	staff = &entity.Actor{ID: "user-1", Name: "Carlos", Role: "ATTENDANT", CompanyID: "company-1"}
)

func orderO1() entity.ServiceOrder {
	return entity.ServiceOrder{
		ID:             "O1",
		CompanyID:      "company-1",
		CustomerName:   "Maria da Silva",
		CustomerPhone:  "+55 11 99999-0000",
		TechnicianName: "João",
		Status:         entity.OrderStatusOpen,
		Items: []entity.OrderItem{
			{ID: "i1", Name: "Troca de tela", Price: 100},
		},
		TotalValue: 100,
		CreatedAt:  baseTime.Add(-time.Hour),
	}
}

func budgetItems() []entity.ApprovalItem {
	return []entity.ApprovalItem{{ID: "i1", Name: "Troca de tela", Price: 100, Severity: entity.SeverityHigh}}
}

type fixture struct {
	approvals  *memApprovalRepo
	signatures *memSignatureRepo
	evidence   *memEvidenceRepo
	orders     *memOrderRepo
	files      *memFileStorage
	audit      *recordingSink
	logger     *mockLogger
	tx         *mockTxManager
	svc        ApprovalService
}

func newFixture(t *testing.T, opts ...ApprovalOption) *fixture {
	t.Helper()
	f := &fixture{
		approvals:  newMemApprovalRepo(),
		signatures: newMemSignatureRepo(),
		evidence:   newMemEvidenceRepo(),
		orders:     newMemOrderRepo(orderO1()),
		files:      newMemFileStorage(),
		audit:      &recordingSink{},
		logger:     &mockLogger{},
		tx:         &mockTxManager{},
	}

	defaults := []ApprovalOption{
		WithClock(steppingClock(baseTime)),
		WithIDGenerator(sequence("id")),
		WithTokenGenerator(sequence("tok")),
	}

	f.svc = NewApprovalService(ApprovalServiceDeps{
		Approvals:  f.approvals,
		Signatures: f.signatures,
		Evidence:   f.evidence,
		Orders:     f.orders,
		TxManager:  f.tx,
		Files:      f.files,
		Audit:      f.audit,
		Logger:     f.logger,
	}, append(defaults, opts...)...)

	return f
}

func (f *fixture) issue(t *testing.T) *entity.ServiceApproval {
	t.Helper()
	approval, err := f.svc.CreateApprovalRequest(context.Background(), staff, "O1", budgetItems(), "Orçamento da tela")
	require.NoError(t, err)
	return approval
}

func TestApprovalService_CreateApprovalRequest(t *testing.T) {
	f := newFixture(t)

	approval := f.issue(t)

	assert.Equal(t, entity.ApprovalStatusPending, approval.Status)
	assert.Equal(t, 100.0, approval.TotalValue)
	assert.Equal(t, entity.ApprovalTypeBudget, approval.Type)
	assert.Equal(t, "company-1", approval.CompanyID)
	assert.Equal(t, "user-1", approval.CreatedBy)
	assert.NotEmpty(t, approval.Token)
	assert.NotEqual(t, approval.ID, approval.Token)
	assert.Empty(t, approval.VerificationHash)
	assert.Empty(t, approval.ApprovalMethod())
	assert.Nil(t, approval.RespondedAt)

	stored := f.approvals.stored(approval.ID)
	require.NotNil(t, stored)
	assert.Equal(t, approval.Token, stored.Token)

	order := f.orders.stored("O1")
	assert.Equal(t, entity.OrderStatusAwaitingApprove, order.Status)
	require.Len(t, order.StatusHistory, 1)
	assert.Equal(t, entity.OrderStatusOpen, order.StatusHistory[0].From)
	assert.Equal(t, "Carlos", order.StatusHistory[0].ChangedBy)

	assert.Equal(t, []string{entity.AuditApprovalRequested}, f.audit.actions())
	assert.Equal(t, approval.ID, f.audit.last().EntityID)
	assert.Equal(t, entity.EntityTypeApproval, f.audit.last().EntityType)
}

func TestApprovalService_CreateApprovalRequest_Errors(t *testing.T) {
	otherTenant := &entity.Actor{ID: "user-9", Name: "Eve", CompanyID: "company-9"}

	tests := []struct {
		name    string
		actor   *entity.Actor
		orderID string
		items   []entity.ApprovalItem
		wantErr error
	}{
		{"no actor", nil, "O1", budgetItems(), ErrUnauthenticated},
		{"actor without tenant", &entity.Actor{ID: "user-1"}, "O1", budgetItems(), ErrUnauthenticated},
		{"no items", staff, "O1", nil, ErrInsufficientInput},
		{"no order id", staff, " ", budgetItems(), ErrInsufficientInput},
		{"negative price", staff, "O1", []entity.ApprovalItem{{Name: "Desconto", Price: -10}}, ErrInsufficientInput},
		{"unknown order", staff, "O404", budgetItems(), ErrOrderNotFound},
		{"other tenant", otherTenant, "O1", budgetItems(), ErrTenantMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			approval, err := f.svc.CreateApprovalRequest(context.Background(), tt.actor, tt.orderID, tt.items, "")

			assert.Nil(t, approval)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, f.approvals.saves)
			assert.Empty(t, f.audit.actions())
		})
	}
}

func TestApprovalService_OrderNotFoundIsNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateApprovalRequest(context.Background(), staff, "O404", budgetItems(), "")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApprovalService_SnapshotImmutability(t *testing.T) {
	f := newFixture(t)
	items := []entity.ApprovalItem{
		{ID: "i1", Name: "Troca de tela", Price: 100},
		{ID: "i2", Name: "Película", Price: 25.5},
	}

	approval, err := f.svc.CreateApprovalRequest(context.Background(), staff, "O1", items, "")
	require.NoError(t, err)

	want := entity.CloneItems(items)
	items[0].Price = 999
	items[1].Name = "Capa"

	stored := f.approvals.stored(approval.ID)
	if diff := cmp.Diff(want, stored.ItemsSnapshot); diff != "" {
		t.Errorf("stored snapshot changed (-want +got):\n%s", diff)
	}
	assert.Equal(t, 125.5, stored.TotalValue)
	assert.Equal(t, 125.5, approval.TotalValue)
}

func TestApprovalService_UniqueToken(t *testing.T) {
	tokens := []string{"tok-same", "tok-same", "tok-other"}
	next := 0
	f := newFixture(t, WithTokenGenerator(func() string {
		tok := tokens[next]
		next++
		return tok
	}))

	first := f.issue(t)
	second := f.issue(t)

	assert.Equal(t, "tok-same", first.Token)
	assert.Equal(t, "tok-other", second.Token)
}

func TestApprovalService_DefaultTokenIsOpaque(t *testing.T) {
	f := newFixture(t, WithTokenGenerator(newToken))

	approval := f.issue(t)

	assert.Len(t, approval.Token, 32)
	assert.NotContains(t, approval.Token, "-")
}

func TestApprovalService_ProcessDecision_HappyPath(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)
	f.signatures.seed("S1", issued.ID)

	result, err := f.svc.ProcessApprovalDecision(context.Background(), DecisionInput{
		Token:       issued.Token,
		Decision:    entity.DecisionApproved,
		SignatureID: "S1",
		ReceiptURL:  "https://recibos.example/1",
		IPAddress:   "203.0.113.7",
		UserAgent:   "Mozilla/5.0",
	})
	require.NoError(t, err)

	wantHash := fingerprint.VerificationHash(issued.ID, "O1", 100, "company-1", "S1")
	assert.Equal(t, entity.ApprovalStatusApproved, result.Status)
	assert.Equal(t, wantHash, result.VerificationHash)
	assert.Equal(t, entity.ApprovalMethodRemote, result.ApprovalMethod())
	assert.Equal(t, "S1", result.DigitalSignatureID())
	require.NotNil(t, result.RespondedAt)

	remote, ok := result.Resolution.(*entity.RemoteResolution)
	require.True(t, ok)
	assert.Equal(t, "https://recibos.example/1", remote.ReceiptURL)
	assert.Equal(t, "203.0.113.7", remote.IPAddress)
	assert.Equal(t, "Mozilla/5.0", remote.UserAgent)

	stored := f.approvals.stored(issued.ID)
	assert.Equal(t, entity.ApprovalStatusApproved, stored.Status)
	assert.Equal(t, wantHash, stored.VerificationHash)

	order := f.orders.stored("O1")
	assert.Equal(t, entity.OrderStatusApproved, order.Status)
	assert.Equal(t, 100.0, order.TotalValue)
	assert.True(t, order.Items[0].Approved)
	last := order.StatusHistory[len(order.StatusHistory)-1]
	assert.Equal(t, entity.OrderStatusAwaitingApprove, last.From)
	assert.Equal(t, entity.OrderStatusApproved, last.To)
	assert.Equal(t, entity.ActorCustomerWeb, last.ChangedBy)
	assert.Equal(t, "Aprovado com assinatura digital", last.Reason)

	entry := f.audit.last()
	assert.Equal(t, entity.AuditCustomerApproved, entry.Action)
	assert.Equal(t, entity.DefaultCustomerActor, entry.ActorName)
	assert.Equal(t, tokenPrefix(issued.Token), entry.Changes["token_prefix"])
	assert.Equal(t, true, entry.Changes["hash_generated"])
	assert.Equal(t, true, entry.Changes["order_propagated"])
}

func TestApprovalService_ProcessDecision_Rejection(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)

	result, err := f.svc.ProcessApprovalDecision(context.Background(), DecisionInput{
		Token:    issued.Token,
		Decision: entity.DecisionRejected,
		Reason:   "too expensive",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.ApprovalStatusRejected, result.Status)
	assert.Equal(t, "too expensive", result.RejectionReason)
	assert.Empty(t, result.VerificationHash)
	assert.Equal(t, entity.ApprovalMethodRemote, result.ApprovalMethod())

	order := f.orders.stored("O1")
	assert.Equal(t, entity.OrderStatusRejected, order.Status)
	assert.Zero(t, order.TotalValue)
	assert.False(t, order.Items[0].Approved)
	assert.Equal(t, "too expensive", order.StatusHistory[len(order.StatusHistory)-1].Reason)

	entry := f.audit.last()
	assert.Equal(t, entity.AuditCustomerRejected, entry.Action)
	assert.Equal(t, false, entry.Changes["hash_generated"])
	assert.Equal(t, "too expensive", entry.Changes["reason"])
}

func TestApprovalService_ProcessDecision_ApproveWithoutSignature(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)

	result, err := f.svc.ProcessApprovalDecision(context.Background(), DecisionInput{
		Token:    issued.Token,
		Decision: entity.DecisionApproved,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.ApprovalStatusApproved, result.Status)
	assert.Empty(t, result.VerificationHash)
	assert.Empty(t, result.DigitalSignatureID())

	order := f.orders.stored("O1")
	assert.Equal(t, "Aprovado pelo cliente", order.StatusHistory[len(order.StatusHistory)-1].Reason)
}

func TestApprovalService_ProcessDecision_Idempotency(t *testing.T) {
	decisions := []entity.Decision{entity.DecisionApproved, entity.DecisionRejected}

	for _, first := range decisions {
		for _, second := range decisions {
			t.Run(string(first)+"_then_"+string(second), func(t *testing.T) {
				f := newFixture(t)
				issued := f.issue(t)
				f.signatures.seed("S1", issued.ID)

				firstResult, err := f.svc.ProcessApprovalDecision(context.Background(), DecisionInput{
					Token: issued.Token, Decision: first, SignatureID: "S1", Reason: "first",
				})
				require.NoError(t, err)

				again, err := f.svc.ProcessApprovalDecision(context.Background(), DecisionInput{
					Token: issued.Token, Decision: second, SignatureID: "S2", Reason: "second",
				})
				assert.Nil(t, again)
				assert.ErrorIs(t, err, ErrAlreadyProcessed)

				stored := f.approvals.stored(issued.ID)
				assert.Equal(t, firstResult.Status, stored.Status)
				assert.Equal(t, firstResult.VerificationHash, stored.VerificationHash)
				assert.Equal(t, firstResult.RejectionReason, stored.RejectionReason)
				assert.Equal(t, firstResult.RespondedAt, stored.RespondedAt)
			})
		}
	}
}

func TestApprovalService_ProcessDecision_InputErrors(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)

	tests := []struct {
		name    string
		in      DecisionInput
		wantErr error
	}{
		{"missing token", DecisionInput{Decision: entity.DecisionApproved}, ErrInsufficientInput},
		{"unknown decision", DecisionInput{Token: issued.Token, Decision: "MAYBE"}, ErrInsufficientInput},
		{"unknown token", DecisionInput{Token: "nope", Decision: entity.DecisionApproved}, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ProcessApprovalDecision(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.True(t, f.approvals.stored(issued.ID).IsPending())
}

func TestApprovalService_ProcessDecision_MissingOrder(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)

	f.orders.mu.Lock()
	delete(f.orders.byID, "O1")
	f.orders.mu.Unlock()

	result, err := f.svc.ProcessApprovalDecision(context.Background(), DecisionInput{
		Token:    issued.Token,
		Decision: entity.DecisionApproved,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.ApprovalStatusApproved, f.approvals.stored(result.ID).Status)
	assert.Len(t, f.logger.warns, 1)
	assert.Equal(t, false, f.audit.last().Changes["order_propagated"])
}

func TestApprovalService_ProcessDecision_OrderLookupFailure(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)
	f.orders.err = errors.New("database is locked")

	_, err := f.svc.ProcessApprovalDecision(context.Background(), DecisionInput{
		Token:    issued.Token,
		Decision: entity.DecisionApproved,
	})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyProcessed)
	assert.Len(t, f.logger.errs, 1)
	assert.Equal(t, []string{entity.AuditApprovalRequested}, f.audit.actions())
	assert.True(t, f.approvals.stored(issued.ID).IsPending(), "a failed order update must leave the approval retryable")
}

func TestApprovalService_ProcessDecision_ActorAttribution(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)

	_, err := f.svc.ProcessApprovalDecision(context.Background(), DecisionInput{
		Token:    issued.Token,
		Decision: entity.DecisionApproved,
		Actor:    &entity.Actor{ID: "user-2", Name: "Paula", CompanyID: "company-1"},
	})
	require.NoError(t, err)

	order := f.orders.stored("O1")
	assert.Equal(t, "Paula", order.StatusHistory[len(order.StatusHistory)-1].ChangedBy)
	assert.Equal(t, "user-2", f.audit.last().ActorID)
	assert.Equal(t, "Paula", f.audit.last().ActorName)
}

func TestApprovalService_ProcessDecision_UntrustedActorIgnored(t *testing.T) {
	tests := []struct {
		name  string
		actor *entity.Actor
	}{
		{"no tenant", &entity.Actor{ID: "anyone", Name: "Gerente Forjado"}},
		{"other tenant", &entity.Actor{ID: "user-9", Name: "Eve", CompanyID: "company-9"}},
		{"no id", &entity.Actor{Name: "Gerente Forjado", CompanyID: "company-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			issued := f.issue(t)

			_, err := f.svc.ProcessApprovalDecision(context.Background(), DecisionInput{
				Token:    issued.Token,
				Decision: entity.DecisionApproved,
				Actor:    tt.actor,
			})
			require.NoError(t, err)

			order := f.orders.stored("O1")
			assert.Equal(t, entity.ActorCustomerWeb, order.StatusHistory[len(order.StatusHistory)-1].ChangedBy)
			entry := f.audit.last()
			assert.Empty(t, entry.ActorID)
			assert.Equal(t, entity.DefaultCustomerActor, entry.ActorName)
		})
	}
}

func TestApprovalService_ProcessDecision_SignatureMustBelongToApproval(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)
	f.signatures.seed("S-other", "another-approval")

	for _, sigID := range []string{"S-missing", "S-other"} {
		t.Run(sigID, func(t *testing.T) {
			result, err := f.svc.ProcessApprovalDecision(context.Background(), DecisionInput{
				Token:       issued.Token,
				Decision:    entity.DecisionApproved,
				SignatureID: sigID,
			})
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrInsufficientInput)
			assert.True(t, f.approvals.stored(issued.ID).IsPending())
		})
	}
}

func TestApprovalService_ProcessDecision_LaggingTokenIndex(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)
	f.signatures.seed("S1", issued.ID)

	lagging := newLaggingTokenIndex(f.approvals)
	svc := NewApprovalService(ApprovalServiceDeps{
		Approvals:  lagging,
		Signatures: f.signatures,
		Evidence:   f.evidence,
		Orders:     f.orders,
		TxManager:  f.tx,
		Files:      f.files,
		Audit:      f.audit,
		Logger:     f.logger,
	}, WithClock(steppingClock(baseTime.Add(time.Hour))), WithIDGenerator(sequence("id2")))

	// Warm the index with the PENDING version
	_, err := lagging.GetByToken(context.Background(), issued.Token)
	require.NoError(t, err)

	first, err := svc.ProcessApprovalDecision(context.Background(), DecisionInput{
		Token: issued.Token, Decision: entity.DecisionApproved, SignatureID: "S1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.VerificationHash)

	stale, err := lagging.GetByToken(context.Background(), issued.Token)
	require.NoError(t, err)
	require.True(t, stale.IsPending())

	_, err = svc.ProcessApprovalDecision(context.Background(), DecisionInput{
		Token: issued.Token, Decision: entity.DecisionRejected,
	})
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	stored := f.approvals.stored(issued.ID)
	assert.Equal(t, entity.ApprovalStatusApproved, stored.Status)
	assert.Equal(t, first.VerificationHash, stored.VerificationHash)
}

func TestApprovalService_ProcessDecision_ConcurrentWriteLoses(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)

	// Another decision lands between the read and the conditional write
	f.orders.beforeUpdate = func() {
		decided := f.approvals.stored(issued.ID)
		decided.Status = entity.ApprovalStatusRejected
		f.approvals.mu.Lock()
		f.approvals.byID[issued.ID] = decided
		f.approvals.mu.Unlock()
	}

	_, err := f.svc.ProcessApprovalDecision(context.Background(), DecisionInput{
		Token: issued.Token, Decision: entity.DecisionApproved,
	})
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Equal(t, entity.ApprovalStatusRejected, f.approvals.stored(issued.ID).Status)
}

func TestApprovalService_CaptureSignatureThenApprove(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)

	sig, err := f.svc.CaptureSignature(context.Background(), issued.Token, SignatureInput{
		SignedName:     "  Maria da Silva ",
		SignatureImage: signatureDataURL,
		Confirmed:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Maria da Silva", sig.SignedName)
	assert.Equal(t, issued.ID, sig.ServiceApprovalID)
	assert.True(t, sig.ConfirmationChecked)
	assert.Equal(t, "signatures/"+issued.ID+"/"+sig.ID+".png", sig.ImagePath)
	content, err := f.files.Read(context.Background(), sig.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)
	assert.Equal(t, entity.AuditSignatureCaptured, f.audit.last().Action)

	result, err := f.svc.ProcessApprovalDecision(context.Background(), DecisionInput{
		Token:    issued.Token,
		Decision: entity.DecisionApproved,
	})
	require.NoError(t, err)

	assert.Equal(t, sig.ID, result.DigitalSignatureID())
	assert.Equal(t, fingerprint.VerificationHash(issued.ID, "O1", 100, "company-1", sig.ID), result.VerificationHash)
}

func TestApprovalService_CaptureSignature_Errors(t *testing.T) {
	valid := SignatureInput{SignedName: "Maria", SignatureImage: signatureDataURL, Confirmed: true}

	t.Run("missing confirmation", func(t *testing.T) {
		f := newFixture(t)
		issued := f.issue(t)
		in := valid
		in.Confirmed = false

		_, err := f.svc.CaptureSignature(context.Background(), issued.Token, in)
		assert.ErrorIs(t, err, ErrInsufficientInput)
	})

	t.Run("missing image", func(t *testing.T) {
		f := newFixture(t)
		issued := f.issue(t)
		in := valid
		in.SignatureImage = ""

		_, err := f.svc.CaptureSignature(context.Background(), issued.Token, in)
		assert.ErrorIs(t, err, ErrInsufficientInput)
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CaptureSignature(context.Background(), "nope", valid)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("second signature", func(t *testing.T) {
		f := newFixture(t)
		issued := f.issue(t)
		_, err := f.svc.CaptureSignature(context.Background(), issued.Token, valid)
		require.NoError(t, err)

		_, err = f.svc.CaptureSignature(context.Background(), issued.Token, valid)
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
	})

	t.Run("decided approval", func(t *testing.T) {
		f := newFixture(t)
		issued := f.issue(t)
		_, err := f.svc.ProcessApprovalDecision(context.Background(), DecisionInput{Token: issued.Token, Decision: entity.DecisionRejected})
		require.NoError(t, err)

		_, err = f.svc.CaptureSignature(context.Background(), issued.Token, valid)
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
	})

	t.Run("opaque image kept inline", func(t *testing.T) {
		f := newFixture(t)
		issued := f.issue(t)
		in := valid
		in.SignatureImage = "stroke-data-v1"

		sig, err := f.svc.CaptureSignature(context.Background(), issued.Token, in)
		require.NoError(t, err)
		assert.Empty(t, sig.ImagePath)
		assert.Equal(t, "stroke-data-v1", sig.SignatureImage)
		assert.Empty(t, f.files.files)
	})
}

func TestApprovalService_RegisterInPersonApproval(t *testing.T) {
	f := newFixture(t)

	approval, err := f.svc.RegisterInPersonApproval(context.Background(), staff, "O1", budgetItems(), InPersonInput{
		SignedName:     "Maria da Silva",
		SignatureImage: signatureDataURL,
		Confirmed:      true,
	})
	require.NoError(t, err)

	// Created APPROVED in a single write: no PENDING state is ever stored
	assert.Equal(t, 1, f.approvals.saves)
	assert.Equal(t, entity.ApprovalStatusApproved, f.approvals.stored(approval.ID).Status)
	assert.Equal(t, entity.ApprovalMethodInPerson, approval.ApprovalMethod())
	require.NotNil(t, approval.RespondedAt)

	sigID := approval.DigitalSignatureID()
	require.NotEmpty(t, sigID)
	sig, err := f.signatures.GetByID(context.Background(), sigID)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, approval.ID, sig.ServiceApprovalID)

	assert.Equal(t, fingerprint.VerificationHash(approval.ID, "O1", 100, "company-1", sigID), approval.VerificationHash)

	order := f.orders.stored("O1")
	assert.Equal(t, entity.OrderStatusApproved, order.Status)
	assert.Equal(t, 100.0, order.TotalValue)
	assert.Equal(t, "Carlos"+entity.ActorSuffixInPerson, order.StatusHistory[len(order.StatusHistory)-1].ChangedBy)

	assert.Equal(t, []string{entity.AuditInPersonApproval}, f.audit.actions())
}

func TestApprovalService_RegisterInPersonApproval_Errors(t *testing.T) {
	valid := InPersonInput{SignedName: "Maria", SignatureImage: signatureDataURL, Confirmed: true}

	tests := []struct {
		name    string
		actor   *entity.Actor
		orderID string
		in      InPersonInput
		wantErr error
	}{
		{"no actor", nil, "O1", valid, ErrUnauthenticated},
		{"unknown order", staff, "O404", valid, ErrOrderNotFound},
		{"missing name", staff, "O1", InPersonInput{SignatureImage: signatureDataURL, Confirmed: true}, ErrInsufficientInput},
		{"not confirmed", staff, "O1", InPersonInput{SignedName: "Maria", SignatureImage: signatureDataURL}, ErrInsufficientInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.RegisterInPersonApproval(context.Background(), tt.actor, tt.orderID, budgetItems(), tt.in)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, f.approvals.saves)
			assert.Empty(t, f.signatures.byID)
		})
	}
}

func TestApprovalService_RegisterPhysicalApproval(t *testing.T) {
	t.Run("uploaded content", func(t *testing.T) {
		f := newFixture(t)

		approval, err := f.svc.RegisterPhysicalApproval(context.Background(), staff, "O1", budgetItems(), entity.DocumentUpload{
			FileName: "../termo assinado.pdf",
			MimeType: "application/pdf",
			Content:  []byte("%PDF-1.4"),
		})
		require.NoError(t, err)

		assert.Equal(t, entity.ApprovalStatusApproved, approval.Status)
		assert.Equal(t, entity.ApprovalMethodDocument, approval.ApprovalMethod())
		assert.Empty(t, approval.VerificationHash)
		assert.Empty(t, approval.DigitalSignatureID())

		ev, err := f.evidence.GetByID(context.Background(), approval.EvidenceID())
		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, "termo assinado.pdf", ev.FileName)
		assert.Equal(t, "documents/O1/"+ev.ID+".pdf", ev.DocumentRef)
		assert.Equal(t, int64(8), ev.Size)
		assert.Equal(t, "user-1", ev.UploadedBy)
		assert.True(t, f.files.Exists(context.Background(), ev.DocumentRef))

		order := f.orders.stored("O1")
		assert.Equal(t, entity.OrderStatusApproved, order.Status)
		assert.Equal(t, "Carlos"+entity.ActorSuffixDocument, order.StatusHistory[len(order.StatusHistory)-1].ChangedBy)

		assert.Equal(t, []string{entity.AuditPhysicalApproval}, f.audit.actions())
	})

	t.Run("existing reference", func(t *testing.T) {
		f := newFixture(t)

		approval, err := f.svc.RegisterPhysicalApproval(context.Background(), staff, "O1", budgetItems(), entity.DocumentUpload{
			Reference: "https://arquivos.example/os-1/termo.pdf",
		})
		require.NoError(t, err)

		ev, err := f.evidence.GetByID(context.Background(), approval.EvidenceID())
		require.NoError(t, err)
		assert.Equal(t, "https://arquivos.example/os-1/termo.pdf", ev.DocumentRef)
		assert.Empty(t, f.files.files)
	})

	t.Run("no document", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.RegisterPhysicalApproval(context.Background(), staff, "O1", budgetItems(), entity.DocumentUpload{})
		assert.ErrorIs(t, err, ErrInsufficientInput)
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.RegisterPhysicalApproval(context.Background(), staff, "O404", budgetItems(), entity.DocumentUpload{Reference: "x"})
		assert.ErrorIs(t, err, ErrOrderNotFound)
		assert.Empty(t, f.evidence.byID)
	})
}

func TestApprovalService_LatestAndList(t *testing.T) {
	f := newFixture(t)
	first := f.issue(t)
	second := f.issue(t)

	latest, err := f.svc.GetLatestApproval(context.Background(), staff, "O1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	list, err := f.svc.ListApprovals(context.Background(), staff, "O1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	_, err = f.svc.GetLatestApproval(context.Background(), nil, "O1")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.svc.ListApprovals(context.Background(), &entity.Actor{ID: "x", CompanyID: "company-9"}, "O1")
	assert.ErrorIs(t, err, ErrTenantMismatch)
}

func TestApprovalService_GetLatestApproval_None(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetLatestApproval(context.Background(), staff, "O1")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrOrderNotFound)
}

func TestApprovalService_GetApprovalByToken(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)

	got, err := f.svc.GetApprovalByToken(context.Background(), "  "+issued.Token+" ")
	require.NoError(t, err)
	assert.Equal(t, issued.ID, got.ID)

	_, err = f.svc.GetApprovalByToken(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.GetApprovalByToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrInsufficientInput)
}

func TestTokenPrefix(t *testing.T) {
	assert.Equal(t, "abcdefgh", tokenPrefix("abcdefghijklmnop"))
	assert.Equal(t, "abc", tokenPrefix("abc"))
}
