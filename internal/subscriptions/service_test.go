package subscriptions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velvetfeed/velvetfeed-backend/pkg/db/models"
	"github.com/velvetfeed/velvetfeed-backend/pkg/enums"
)

// stubStore keeps subscriptions in a slice and mimics the repo's gorm
// error contract, including a simulated unique-violation race on insert.
type stubStore struct {
	rows        []*models.Subscription
	createErrs  []error
	conflictRow *models.Subscription
	bindErr     error
	bindCalls   int
	createCalls int
}

func (s *stubStore) Create(ctx context.Context, sub *models.Subscription) error {
	s.createCalls++
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			// The racing duplicate's row becomes visible at conflict time.
			if s.conflictRow != nil {
				s.rows = append(s.rows, s.conflictRow)
				s.conflictRow = nil
			}
			return err
		}
	}
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	s.rows = append(s.rows, sub)
	return nil
}

func (s *stubStore) Update(ctx context.Context, sub *models.Subscription) error {
	return nil
}

func (s *stubStore) FindActiveByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	for _, row := range s.rows {
		if row.UserID != nil && *row.UserID == userID && row.Status == enums.SubscriptionStatusActive {
			return row, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubStore) FindActiveByEmail(ctx context.Context, email string) (*models.Subscription, error) {
	for _, row := range s.rows {
		if row.Email == email && row.Status == enums.SubscriptionStatusActive {
			return row, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubStore) FindByEmailAndOrder(ctx context.Context, email, orderID string) (*models.Subscription, error) {
	for _, row := range s.rows {
		if row.Email == email && row.OrderID != nil && *row.OrderID == orderID {
			return row, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubStore) FindLatestOrderlessByEmail(ctx context.Context, email string) (*models.Subscription, error) {
	var latest *models.Subscription
	for _, row := range s.rows {
		if row.Email != email || row.OrderID != nil {
			continue
		}
		if latest == nil || row.LastEventAt.After(latest.LastEventAt) {
			latest = row
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (s *stubStore) BindUserID(ctx context.Context, recordID, userID uuid.UUID) error {
	s.bindCalls++
	if s.bindErr != nil {
		return s.bindErr
	}
	for _, row := range s.rows {
		if row.ID == recordID && row.UserID == nil {
			bound := userID
			row.UserID = &bound
		}
	}
	return nil
}

func newTestService(t *testing.T, store *stubStore) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Store: store})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func strPtr(v string) *string { return &v }

func TestHasActive_PrefersUserIDMatch(t *testing.T) {
	userID := uuid.New()
	store := &stubStore{rows: []*models.Subscription{
		{ID: uuid.New(), Email: "other@x.com", UserID: &userID, Status: enums.SubscriptionStatusActive, LastEventAt: time.Now()},
	}}
	svc := newTestService(t, store)

	// Email does not match any row; the user-id binding still grants.
	active, err := svc.HasActive(context.Background(), "changed@x.com", &userID)
	if err != nil {
		t.Fatalf("has active: %v", err)
	}
	if !active {
		t.Fatal("expected user-id match to grant")
	}
}

func TestHasActive_EmailFallbackBindsUserID(t *testing.T) {
	recordID := uuid.New()
	userID := uuid.New()
	store := &stubStore{rows: []*models.Subscription{
		{ID: recordID, Email: "a@x.com", Status: enums.SubscriptionStatusActive, LastEventAt: time.Now()},
	}}
	svc := newTestService(t, store)

	active, err := svc.HasActive(context.Background(), "  A@X.com ", &userID)
	if err != nil {
		t.Fatalf("has active: %v", err)
	}
	if !active {
		t.Fatal("expected email match to grant")
	}
	if store.bindCalls != 1 {
		t.Fatalf("expected one bind attempt, got %d", store.bindCalls)
	}
	if store.rows[0].UserID == nil || *store.rows[0].UserID != userID {
		t.Fatal("expected user id bound on first authenticated match")
	}
}

func TestHasActive_BindFailureIsSwallowed(t *testing.T) {
	userID := uuid.New()
	store := &stubStore{
		rows: []*models.Subscription{
			{ID: uuid.New(), Email: "a@x.com", Status: enums.SubscriptionStatusActive, LastEventAt: time.Now()},
		},
		bindErr: errors.New("column locked"),
	}
	svc := newTestService(t, store)

	active, err := svc.HasActive(context.Background(), "a@x.com", &userID)
	if err != nil {
		t.Fatalf("binding failure must not surface: %v", err)
	}
	if !active {
		t.Fatal("expected access despite binding failure")
	}
}

func TestHasActive_DenyByDefaultStatuses(t *testing.T) {
	denied := []enums.SubscriptionStatus{
		enums.SubscriptionStatusPending,
		enums.SubscriptionStatusCanceled,
		enums.SubscriptionStatusExpired,
		enums.SubscriptionStatusRefunded,
		enums.SubscriptionStatusChargeback,
	}
	for _, status := range denied {
		store := &stubStore{rows: []*models.Subscription{
			{ID: uuid.New(), Email: "a@x.com", Status: status, LastEventAt: time.Now()},
		}}
		svc := newTestService(t, store)

		active, err := svc.HasActive(context.Background(), "a@x.com", nil)
		if err != nil {
			t.Fatalf("has active (%s): %v", status, err)
		}
		if active {
			t.Fatalf("status %s must not grant access", status)
		}
	}
}

func TestHasActive_EmptyIdentityNeverMatches(t *testing.T) {
	store := &stubStore{rows: []*models.Subscription{
		{ID: uuid.New(), Email: "", Status: enums.SubscriptionStatusActive, LastEventAt: time.Now()},
	}}
	svc := newTestService(t, store)

	active, err := svc.HasActive(context.Background(), "   ", nil)
	if err != nil {
		t.Fatalf("has active: %v", err)
	}
	if active {
		t.Fatal("empty identity must never be granted")
	}
}

func TestApply_ReplayConvergesToOneRow(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(t, store)
	dto := ApplyEventDTO{
		Email:   "a@x.com",
		OrderID: strPtr("O1"),
		Status:  enums.SubscriptionStatusActive,
		EventAt: time.Now(),
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.Apply(context.Background(), dto); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	if len(store.rows) != 1 {
		t.Fatalf("expected exactly one row after replay, got %d", len(store.rows))
	}

	dto.Status = enums.SubscriptionStatusRefunded
	sub, err := svc.Apply(context.Background(), dto)
	if err != nil {
		t.Fatalf("apply refund: %v", err)
	}
	if sub.Status != enums.SubscriptionStatusRefunded {
		t.Fatalf("expected latest status applied, got %s", sub.Status)
	}
	if len(store.rows) != 1 {
		t.Fatalf("replay with new status must not create rows, got %d", len(store.rows))
	}
}

func TestApply_InsertConflictRequeriesAndUpdates(t *testing.T) {
	winner := &models.Subscription{
		ID:          uuid.New(),
		Email:       "a@x.com",
		OrderID:     strPtr("O1"),
		Status:      enums.SubscriptionStatusPending,
		LastEventAt: time.Now().Add(-time.Minute),
	}
	store := &stubStore{
		createErrs:  []error{errors.New(`duplicate key value violates unique constraint "uniq_subscriptions_email_order"`)},
		conflictRow: winner,
	}
	svc := newTestService(t, store)

	sub, err := svc.Apply(context.Background(), ApplyEventDTO{
		Email:   "a@x.com",
		OrderID: strPtr("O1"),
		Status:  enums.SubscriptionStatusActive,
		EventAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("apply must converge on conflict, got %v", err)
	}
	if sub.ID != winner.ID {
		t.Fatal("expected the racing row to be reused")
	}
	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected winner updated to active, got %s", sub.Status)
	}
	if len(store.rows) != 1 {
		t.Fatalf("conflict must not duplicate rows, got %d", len(store.rows))
	}
}

func TestApply_OrderlessEventsCollapse(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(t, store)

	for i := 0; i < 4; i++ {
		_, err := svc.Apply(context.Background(), ApplyEventDTO{
			Email:   "a@x.com",
			Status:  enums.SubscriptionStatusPending,
			EventAt: time.Now().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	if len(store.rows) != 1 {
		t.Fatalf("orderless retries must collapse into one row, got %d", len(store.rows))
	}
	if store.createCalls != 1 {
		t.Fatalf("expected single insert, got %d", store.createCalls)
	}
}

func TestHasActive_EnforceExpiry(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	store := &stubStore{rows: []*models.Subscription{
		{ID: uuid.New(), Email: "a@x.com", Status: enums.SubscriptionStatusActive, ExpiresAt: &past, LastEventAt: time.Now()},
	}}

	// Default: expiry is ignored, webhook-driven status rules.
	svc := newTestService(t, store)
	active, err := svc.HasActive(context.Background(), "a@x.com", nil)
	if err != nil {
		t.Fatalf("has active: %v", err)
	}
	if !active {
		t.Fatal("expected expiry to be ignored by default")
	}

	enforcing, err := NewService(ServiceParams{Store: store, EnforceExpiry: true})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	active, err = enforcing.HasActive(context.Background(), "a@x.com", nil)
	if err != nil {
		t.Fatalf("has active: %v", err)
	}
	if active {
		t.Fatal("expected past expiry to deny when enforcement is on")
	}
}
