package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"fleetrental/internal/reservations/cache"
	reservationerrors "fleetrental/internal/reservations/errors"
	"fleetrental/internal/reservations/validator"
	"fleetrental/pkg/config"
	mongotx "fleetrental/pkg/db/mongo"
	apperrors "fleetrental/pkg/errors"
	"fleetrental/pkg/logger"
	"fleetrental/pkg/model"
)

// --- In-memory test doubles ---

type memReservationRepo struct {
	mu         sync.Mutex
	byID       map[string]*model.Reservation
	seq        int
	countCalls int
	updateErrs []error
}

func newMemReservationRepo() *memReservationRepo {
	return &memReservationRepo{byID: make(map[string]*model.Reservation)}
}

func (m *memReservationRepo) Create(ctx context.Context, reservation *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	reservation.ID = fmt.Sprintf("res-%d", m.seq)
	reservation.Version = 1
	reservation.CreatedAt = time.Now()

	clone := *reservation
	m.byID[reservation.ID] = &clone
	return nil
}

func (m *memReservationRepo) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.byID[id]
	if !ok {
		return nil, reservationerrors.ErrNotFound
	}
	clone := *stored
	return &clone, nil
}

func (m *memReservationRepo) FindByUser(ctx context.Context, userID string) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*model.Reservation
	for _, stored := range m.byID {
		if stored.UserID == userID {
			clone := *stored
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (m *memReservationRepo) CountOverlapping(ctx context.Context, carType model.CarType, startAt, endAt time.Time, status model.ReservationStatus, excludeID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.countCalls++
	var count int64
	for _, stored := range m.byID {
		if stored.ID == excludeID {
			continue
		}
		if stored.CarType != carType || stored.Status != status {
			continue
		}
		if stored.StartAt.Before(endAt) && stored.EndAt.After(startAt) {
			count++
		}
	}
	return count, nil
}

func (m *memReservationRepo) Update(ctx context.Context, id string, expectedVersion int64, reservation *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.updateErrs) > 0 {
		err := m.updateErrs[0]
		m.updateErrs = m.updateErrs[1:]
		return err
	}

	stored, ok := m.byID[id]
	if !ok || stored.Version != expectedVersion {
		return reservationerrors.ErrVersionConflict
	}

	clone := *reservation
	clone.Version = expectedVersion + 1
	m.byID[id] = &clone
	reservation.Version = expectedVersion + 1
	return nil
}

func (m *memReservationRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

func (m *memReservationRepo) stored(id string) *model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

func (m *memReservationRepo) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type memCapacityRepo struct {
	quantities map[model.CarType]int64
}

func (m *memCapacityRepo) QuantityOf(ctx context.Context, carType model.CarType) (int64, error) {
	// Missing entries read as zero, matching the store behavior.
	return m.quantities[carType], nil
}

type memLockRepo struct {
	mu       sync.Mutex
	held     map[string]bool
	acquires int
}

func newMemLockRepo() *memLockRepo {
	return &memLockRepo{held: make(map[string]bool)}
}

func (m *memLockRepo) Acquire(ctx context.Context, lock *model.ReservationLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.acquires++
	if m.held[lock.ID] {
		return reservationerrors.ErrLockHeld
	}
	m.held[lock.ID] = true
	return nil
}

func (m *memLockRepo) Release(ctx context.Context, lockID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, lockID)
	return nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	created   []string
	updated   []string
	cancelled []string
}

func (p *recordingPublisher) ReservationCreated(ctx context.Context, r *model.Reservation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, r.ID)
	return nil
}

func (p *recordingPublisher) ReservationUpdated(ctx context.Context, r *model.Reservation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updated = append(p.updated, r.ID)
	return nil
}

func (p *recordingPublisher) ReservationCancelled(ctx context.Context, r *model.Reservation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, r.ID)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// --- Fixture ---

type fixture struct {
	repo      *memReservationRepo
	capRepo   *memCapacityRepo
	lockRepo  *memLockRepo
	cache     *cache.AvailabilityCache
	publisher *recordingPublisher
	service   ReservationService
}

func newFixture(t *testing.T, quantities map[model.CarType]int64) *fixture {
	t.Helper()

	log := logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard, Service: "test"})
	cfg := &config.Config{
		AdmissionRetryAttempts: 3,
		AdmissionRetryBackoff:  time.Millisecond,
		AdmissionLockTTL:       time.Second,
		Log:                    log,
	}

	f := &fixture{
		repo:      newMemReservationRepo(),
		capRepo:   &memCapacityRepo{quantities: quantities},
		lockRepo:  newMemLockRepo(),
		cache:     cache.New(log),
		publisher: &recordingPublisher{},
	}
	f.service = NewReservationService(
		f.repo,
		f.capRepo,
		f.lockRepo,
		validator.NewReservationValidator(log),
		f.cache,
		f.publisher,
		cfg,
	)
	return f
}

func validRequest(startAt time.Time, days int) *model.ReservationRequest {
	return &model.ReservationRequest{
		Category: "sedan",
		StartAt:  startAt,
		Days:     days,
	}
}

func futureTime(hours int) time.Time {
	return time.Now().Add(time.Duration(hours) * time.Hour).UTC().Truncate(time.Second)
}

func assertAppErrorCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected error code %s, got %s (%v)", code, appErr.Code, appErr)
	}
	return appErr
}

// --- Create ---

func TestCreate_Succeeds(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 2})
	ctx := context.Background()
	startAt := futureTime(24)

	// One existing reservation still leaves a unit free.
	if _, err := f.service.Create(ctx, "user-1", validRequest(startAt, 3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created, err := f.service.Create(ctx, "user-2", validRequest(startAt, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created.ID == "" {
		t.Error("expected ID to be set")
	}
	if created.Status != model.StatusConfirmed {
		t.Errorf("expected status %s, got %s", model.StatusConfirmed, created.Status)
	}
	if created.Version != 1 {
		t.Errorf("expected version 1, got %d", created.Version)
	}
	wantEnd := startAt.Add(3 * 24 * time.Hour)
	if !created.EndAt.Equal(wantEnd) {
		t.Errorf("expected endAt %v, got %v", wantEnd, created.EndAt)
	}
	if f.repo.size() != 2 {
		t.Errorf("expected 2 stored reservations, got %d", f.repo.size())
	}
	if len(f.publisher.created) != 2 {
		t.Errorf("expected 2 created events, got %d", len(f.publisher.created))
	}
}

func TestCreate_AtCapacity_Conflict(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 1})
	ctx := context.Background()
	startAt := futureTime(24)

	if _, err := f.service.Create(ctx, "user-1", validRequest(startAt, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := f.service.Create(ctx, "user-2", validRequest(startAt.Add(time.Hour), 1))
	appErr := assertAppErrorCode(t, err, apperrors.CodeCapacityConflict)
	if appErr.Message != "No availability for requested period" {
		t.Errorf("unexpected message: %q", appErr.Message)
	}
	if f.repo.size() != 1 {
		t.Errorf("expected 1 stored reservation, got %d", f.repo.size())
	}
}

func TestCreate_TouchingWindows_DoNotConflict(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 1})
	ctx := context.Background()
	startAt := futureTime(24)

	first, err := f.service.Create(ctx, "user-1", validRequest(startAt, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A window starting exactly where the other ends shares no instant.
	if _, err := f.service.Create(ctx, "user-2", validRequest(first.EndAt, 2)); err != nil {
		t.Fatalf("expected touching windows to coexist, got: %v", err)
	}
}

func TestCreate_PastStart_NoStoreCall(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 5})

	_, err := f.service.Create(context.Background(), "user-1", validRequest(time.Now().Add(-time.Hour), 2))
	appErr := assertAppErrorCode(t, err, apperrors.CodeInvalidRequest)
	if appErr.FieldErrors["startAt"] != "startAt must be in the future" {
		t.Errorf("unexpected field errors: %v", appErr.FieldErrors)
	}

	// Invalid input must be rejected before admission control runs.
	if f.repo.countCalls != 0 {
		t.Errorf("expected no overlap counts, got %d", f.repo.countCalls)
	}
	if f.lockRepo.acquires != 0 {
		t.Errorf("expected no lock acquisitions, got %d", f.lockRepo.acquires)
	}
}

func TestCreate_UnknownCategory(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 5})

	req := &model.ReservationRequest{Category: "crossover", StartAt: futureTime(24), Days: 2}
	_, err := f.service.Create(context.Background(), "user-1", req)

	appErr := assertAppErrorCode(t, err, apperrors.CodeInvalidRequest)
	msg := appErr.FieldErrors["category"]
	if msg != "Unknown carType: crossover (allowed: sedan, suv, van)" {
		t.Errorf("unexpected category error: %q", msg)
	}
}

func TestCreate_UnconfiguredCategory_ZeroCapacity(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 5})

	req := &model.ReservationRequest{Category: "van", StartAt: futureTime(24), Days: 2}
	_, err := f.service.Create(context.Background(), "user-1", req)

	assertAppErrorCode(t, err, apperrors.CodeCapacityConflict)
}

func TestCreate_MissingUser_Unauthorized(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 5})

	_, err := f.service.Create(context.Background(), "", validRequest(futureTime(24), 2))
	assertAppErrorCode(t, err, apperrors.CodeUnauthorized)
}

func TestCreate_ConcurrentRaceForLastUnit(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 1})
	startAt := futureTime(24)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i)
			_, results[i] = f.service.Create(context.Background(), user, validRequest(startAt, 2))
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range results {
		if err == nil {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly 1 success, got %d (errors: %v)", successes, results)
	}
	if f.repo.size() != 1 {
		t.Errorf("expected 1 stored reservation, got %d", f.repo.size())
	}
}

// --- Update ---

func TestUpdate_OwnWindowDoesNotBlockItself(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 1})
	ctx := context.Background()
	startAt := futureTime(24)

	created, err := f.service.Create(ctx, "user-1", validRequest(startAt, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// At full capacity the only overlapper is the reservation itself, so
	// shifting it must still pass admission.
	updated, err := f.service.Update(ctx, "user-1", created.ID, validRequest(startAt.Add(time.Hour), 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Days != 3 {
		t.Errorf("expected days 3, got %d", updated.Days)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}
	if len(f.publisher.updated) != 1 {
		t.Errorf("expected 1 updated event, got %d", len(f.publisher.updated))
	}
}

func TestUpdate_Cancelled_EditConflict(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 2})
	ctx := context.Background()

	created, err := f.service.Create(ctx, "user-1", validRequest(futureTime(24), 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.service.Cancel(ctx, "user-1", created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = f.service.Update(ctx, "user-1", created.ID, validRequest(futureTime(48), 2))
	appErr := assertAppErrorCode(t, err, apperrors.CodeEditConflict)
	if appErr.Message != "Cannot edit a cancelled reservation" {
		t.Errorf("unexpected message: %q", appErr.Message)
	}
}

func TestUpdate_OtherUsersReservation_NotFound(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 2})
	ctx := context.Background()

	created, err := f.service.Create(ctx, "user-1", validRequest(futureTime(24), 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Ownership mismatch must be indistinguishable from a missing id.
	_, err = f.service.Update(ctx, "user-2", created.ID, validRequest(futureTime(48), 2))
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
}

func TestUpdate_MissingReservation_NotFound(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 2})

	_, err := f.service.Update(context.Background(), "user-1", "missing", validRequest(futureTime(24), 2))
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
}

func TestUpdate_RetriesOnVersionConflict(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 2})
	ctx := context.Background()

	created, err := f.service.Create(ctx, "user-1", validRequest(futureTime(24), 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// First write loses the version race; the retry re-fetches and wins.
	f.repo.updateErrs = []error{reservationerrors.ErrVersionConflict}
	updated, err := f.service.Update(ctx, "user-1", created.ID, validRequest(futureTime(48), 4))
	if err != nil {
		t.Fatalf("expected retry to succeed, got: %v", err)
	}
	if updated.Days != 4 {
		t.Errorf("expected days 4, got %d", updated.Days)
	}
}

func TestUpdate_ExhaustedRetries_StoreConflict(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 2})
	ctx := context.Background()

	created, err := f.service.Create(ctx, "user-1", validRequest(futureTime(24), 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.repo.updateErrs = []error{
		reservationerrors.ErrVersionConflict,
		reservationerrors.ErrVersionConflict,
		reservationerrors.ErrVersionConflict,
	}
	_, err = f.service.Update(ctx, "user-1", created.ID, validRequest(futureTime(48), 4))
	assertAppErrorCode(t, err, apperrors.CodeStoreConflict)
}

// --- Cancel ---

func TestCancel_FlipsStatusAndFreesCapacity(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 1})
	ctx := context.Background()
	startAt := futureTime(24)

	created, err := f.service.Create(ctx, "user-1", validRequest(startAt, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.service.Cancel(ctx, "user-1", created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.repo.stored(created.ID)
	if stored.Status != model.StatusCancelled {
		t.Errorf("expected status %s, got %s", model.StatusCancelled, stored.Status)
	}
	if len(f.publisher.cancelled) != 1 {
		t.Errorf("expected 1 cancelled event, got %d", len(f.publisher.cancelled))
	}

	// The freed unit is immediately admissible again.
	if _, err := f.service.Create(ctx, "user-2", validRequest(startAt, 2)); err != nil {
		t.Fatalf("expected freed capacity to admit, got: %v", err)
	}
}

func TestCancel_Idempotent(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 1})
	ctx := context.Background()

	created, err := f.service.Create(ctx, "user-1", validRequest(futureTime(24), 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.service.Cancel(ctx, "user-1", created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.service.Cancel(ctx, "user-1", created.ID); err != nil {
		t.Fatalf("expected repeat cancel to be a no-op, got: %v", err)
	}

	if len(f.publisher.cancelled) != 1 {
		t.Errorf("expected 1 cancelled event, got %d", len(f.publisher.cancelled))
	}
	stored := f.repo.stored(created.ID)
	if stored.Version != 2 {
		t.Errorf("expected version 2 after single flip, got %d", stored.Version)
	}
}

func TestCancel_OtherUsersReservation_NotFound(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 1})
	ctx := context.Background()

	created, err := f.service.Create(ctx, "user-1", validRequest(futureTime(24), 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = f.service.Cancel(ctx, "user-2", created.ID)
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
}

// --- Availability ---

func TestAvailable_Formula(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 3})
	ctx := context.Background()
	startAt := futureTime(24)

	if _, err := f.service.Create(ctx, "user-1", validRequest(startAt, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	available, err := f.service.Available(ctx, model.Sedan, startAt, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if available != 2 {
		t.Errorf("expected 2 available, got %d", available)
	}
}

func TestAvailable_NeverNegative(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{})
	ctx := context.Background()
	startAt := futureTime(24)

	// Zero capacity with a lingering confirmed row would go negative
	// without clamping.
	f.repo.byID["res-x"] = &model.Reservation{
		ID:      "res-x",
		UserID:  "user-1",
		CarType: model.SUV,
		StartAt: startAt,
		EndAt:   startAt.Add(48 * time.Hour),
		Status:  model.StatusConfirmed,
		Version: 1,
	}

	available, err := f.service.Available(ctx, model.SUV, startAt, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if available != 0 {
		t.Errorf("expected 0 available, got %d", available)
	}
}

func TestAvailable_CachedUntilMutation(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 3})
	ctx := context.Background()
	startAt := futureTime(24).Truncate(time.Hour)

	if _, err := f.service.Available(ctx, model.Sedan, startAt, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	countsAfterFirst := f.repo.countCalls

	// Second read of the same hour bucket must be served from the cache.
	if _, err := f.service.Available(ctx, model.Sedan, startAt.Add(30*time.Minute), 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.repo.countCalls != countsAfterFirst {
		t.Errorf("expected cached read, counts went %d -> %d", countsAfterFirst, f.repo.countCalls)
	}

	// A mutation evicts everything; the next read recomputes.
	if _, err := f.service.Create(ctx, "user-1", validRequest(startAt, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	available, err := f.service.Available(ctx, model.Sedan, startAt, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if available != 2 {
		t.Errorf("expected recomputed availability 2, got %d", available)
	}
}

// --- Listing ---

func TestListByUser_OnlyOwnReservations(t *testing.T) {
	f := newFixture(t, map[model.CarType]int64{model.Sedan: 5})
	ctx := context.Background()

	if _, err := f.service.Create(ctx, "user-1", validRequest(futureTime(24), 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.service.Create(ctx, "user-2", validRequest(futureTime(24), 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reservations, err := f.service.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reservations) != 1 {
		t.Fatalf("expected 1 reservation, got %d", len(reservations))
	}
	if reservations[0].UserID != "user-1" {
		t.Errorf("expected user-1, got %s", reservations[0].UserID)
	}
}
