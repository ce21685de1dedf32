package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"fleetrental/internal/reservations/cache"
	reservationerrors "fleetrental/internal/reservations/errors"
	"fleetrental/internal/reservations/events"
	"fleetrental/internal/reservations/repository"
	"fleetrental/internal/reservations/validator"
	"fleetrental/pkg/config"
	apperrors "fleetrental/pkg/errors"
	"fleetrental/pkg/model"
	"fleetrental/pkg/timeutil"
)

type ReservationService interface {
	Create(ctx context.Context, userID string, req *model.ReservationRequest) (*model.Reservation, error)
	Update(ctx context.Context, userID string, id string, req *model.ReservationRequest) (*model.Reservation, error)
	Cancel(ctx context.Context, userID string, id string) error
	ListByUser(ctx context.Context, userID string) ([]*model.Reservation, error)
	Available(ctx context.Context, carType model.CarType, startAt time.Time, days int) (int64, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	capRepo   repository.CapacityRepository
	lockRepo  repository.ReservationLockRepository
	validator *validator.ReservationValidator
	cache     *cache.AvailabilityCache
	events    events.Publisher
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	capRepo repository.CapacityRepository,
	lockRepo repository.ReservationLockRepository,
	validator *validator.ReservationValidator,
	availabilityCache *cache.AvailabilityCache,
	publisher events.Publisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		capRepo:   capRepo,
		lockRepo:  lockRepo,
		validator: validator,
		cache:     availabilityCache,
		events:    publisher,
		cfg:       cfg,
	}
}

func (s *reservationService) Create(ctx context.Context, userID string, req *model.ReservationRequest) (*model.Reservation, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("Caller identity is required")
	}

	// Validation runs before any store access: a past start or bad
	// category never reaches the overlap counter.
	carType, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}
	endAt := timeutil.EndFromStartAndDays(req.StartAt, req.Days)

	var created *model.Reservation
	err = s.withConflictRetry(ctx, "create", func(ctx context.Context) error {
		return s.admitAndCommit(ctx, carType, func(sessCtx mongo.SessionContext) error {
			if err := s.ensureAdmissible(sessCtx, carType, req.StartAt, endAt, ""); err != nil {
				return err
			}

			reservation := &model.Reservation{
				UserID:  userID,
				CarType: carType,
				StartAt: req.StartAt,
				EndAt:   endAt,
				Days:    req.Days,
				Status:  model.StatusConfirmed,
			}
			if err := s.repo.Create(sessCtx, reservation); err != nil {
				return apperrors.Internal("Failed to create reservation", err)
			}

			created = reservation
			return nil
		})
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create reservation", "user_id", userID, "error", err)
		return nil, err
	}

	s.cache.InvalidateAll()
	s.publishEvent(ctx, events.EventReservationCreated, s.events.ReservationCreated, created)

	s.cfg.Log.Info("Reservation created successfully",
		"id", created.ID,
		"user_id", created.UserID,
		"car_type", created.CarType,
		"start_at", created.StartAt,
		"days", created.Days,
	)
	return created, nil
}

func (s *reservationService) Update(ctx context.Context, userID string, id string, req *model.ReservationRequest) (*model.Reservation, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("Caller identity is required")
	}
	if id == "" {
		return nil, apperrors.InvalidRequest("Reservation ID cannot be empty")
	}

	var updated *model.Reservation
	err := s.withConflictRetry(ctx, "update", func(ctx context.Context) error {
		existing, err := s.findOwned(ctx, userID, id)
		if err != nil {
			return err
		}
		if existing.Status == model.StatusCancelled {
			return apperrors.EditConflict("Cannot edit a cancelled reservation")
		}

		carType, err := s.validateRequest(req)
		if err != nil {
			return err
		}
		endAt := timeutil.EndFromStartAndDays(req.StartAt, req.Days)

		return s.admitAndCommit(ctx, carType, func(sessCtx mongo.SessionContext) error {
			// The reservation's own window must not count against itself.
			if err := s.ensureAdmissible(sessCtx, carType, req.StartAt, endAt, existing.ID); err != nil {
				return err
			}

			merged := *existing
			merged.CarType = carType
			merged.StartAt = req.StartAt
			merged.EndAt = endAt
			merged.Days = req.Days

			if err := s.repo.Update(sessCtx, existing.ID, existing.Version, &merged); err != nil {
				if errors.Is(err, reservationerrors.ErrVersionConflict) {
					return apperrors.StoreConflict("Reservation was modified concurrently", err)
				}
				return apperrors.Internal("Failed to update reservation", err)
			}

			updated = &merged
			return nil
		})
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update reservation", "id", id, "error", err)
		return nil, err
	}

	s.cache.InvalidateAll()
	s.publishEvent(ctx, events.EventReservationUpdated, s.events.ReservationUpdated, updated)

	s.cfg.Log.Info("Reservation updated successfully", "id", updated.ID, "user_id", userID)
	return updated, nil
}

func (s *reservationService) Cancel(ctx context.Context, userID string, id string) error {
	if userID == "" {
		return apperrors.Unauthorized("Caller identity is required")
	}
	if id == "" {
		return apperrors.InvalidRequest("Reservation ID cannot be empty")
	}

	var cancelled *model.Reservation
	err := s.withConflictRetry(ctx, "cancel", func(ctx context.Context) error {
		existing, err := s.findOwned(ctx, userID, id)
		if err != nil {
			return err
		}
		if existing.Status == model.StatusCancelled {
			// CANCELLED is terminal; cancelling again is a silent no-op.
			cancelled = nil
			return nil
		}

		// Freeing capacity is always safe: no admission check, no lock.
		flipped := *existing
		flipped.Status = model.StatusCancelled
		if err := s.repo.Update(ctx, existing.ID, existing.Version, &flipped); err != nil {
			if errors.Is(err, reservationerrors.ErrVersionConflict) {
				return apperrors.StoreConflict("Reservation was modified concurrently", err)
			}
			return apperrors.Internal("Failed to cancel reservation", err)
		}

		cancelled = &flipped
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to cancel reservation", "id", id, "error", err)
		return err
	}

	if cancelled == nil {
		return nil
	}

	s.cache.InvalidateAll()
	s.publishEvent(ctx, events.EventReservationCancelled, s.events.ReservationCancelled, cancelled)

	s.cfg.Log.Info("Reservation cancelled successfully", "id", cancelled.ID, "user_id", userID)
	return nil
}

func (s *reservationService) ListByUser(ctx context.Context, userID string) ([]*model.Reservation, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("Caller identity is required")
	}

	reservations, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to list reservations", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservations", err)
	}

	return reservations, nil
}

// Available answers the advisory read path through the cache.
func (s *reservationService) Available(ctx context.Context, carType model.CarType, startAt time.Time, days int) (int64, error) {
	return s.cache.GetOrCompute(carType, startAt, days, func() (int64, error) {
		return s.available(ctx, carType, startAt, days)
	})
}

// available reads current counts directly, bypassing the cache.
func (s *reservationService) available(ctx context.Context, carType model.CarType, startAt time.Time, days int) (int64, error) {
	endAt := timeutil.EndFromStartAndDays(startAt, days)

	overlapping, err := s.repo.CountOverlapping(ctx, carType, startAt, endAt, model.StatusConfirmed, "")
	if err != nil {
		return 0, apperrors.Internal("Failed to count overlapping reservations", err)
	}
	capacity, err := s.capRepo.QuantityOf(ctx, carType)
	if err != nil {
		return 0, apperrors.Internal("Failed to look up fleet capacity", err)
	}

	return max(0, capacity-overlapping), nil
}

// --- Helpers ---

func (s *reservationService) validateRequest(req *model.ReservationRequest) (model.CarType, error) {
	carType, err := s.validator.Validate(req, time.Now())
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			s.cfg.Log.Warn("Reservation validation failed", "error", err)
			return "", apperrors.Validation("Reservation validation failed", validationErrs.Fields())
		}
		return "", apperrors.Internal("Failed to validate reservation request", err)
	}
	return carType, nil
}

// findOwned resolves the reservation for the caller. A missing id and an
// ownership mismatch are both NotFound so non-owners cannot probe for
// the existence of other users' reservations.
func (s *reservationService) findOwned(ctx context.Context, userID string, id string) (*model.Reservation, error) {
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationerrors.ErrNotFound) || errors.Is(err, reservationerrors.ErrInvalidID) {
			return nil, apperrors.NotFound("Reservation")
		}
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}
	if reservation.UserID != userID {
		return nil, apperrors.NotFound("Reservation")
	}
	return reservation, nil
}

// ensureAdmissible is the admission-control gate: it must run inside the
// same transaction as the write it protects, under the category lock.
func (s *reservationService) ensureAdmissible(ctx context.Context, carType model.CarType, startAt, endAt time.Time, excludeID string) error {
	overlapping, err := s.repo.CountOverlapping(ctx, carType, startAt, endAt, model.StatusConfirmed, excludeID)
	if err != nil {
		return apperrors.Internal("Failed to count overlapping reservations", err)
	}
	capacity, err := s.capRepo.QuantityOf(ctx, carType)
	if err != nil {
		return apperrors.Internal("Failed to look up fleet capacity", err)
	}

	if overlapping >= capacity {
		return apperrors.CapacityConflict("No availability for requested period")
	}
	return nil
}

// admitAndCommit serializes the read-check-write sequence for one category:
// the advisory lock keeps concurrent admission checks from interleaving, and
// the transaction keeps the count and the write atomic.
func (s *reservationService) admitAndCommit(ctx context.Context, carType model.CarType, fn func(sessCtx mongo.SessionContext) error) error {
	lockID, err := s.acquireAdmissionLock(ctx, carType)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.lockRepo.Release(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release admission lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	return s.repo.ExecuteTransaction(ctx, fn)
}

func (s *reservationService) acquireAdmissionLock(ctx context.Context, carType model.CarType) (string, error) {
	// One lock per category: coarser than per-window, so any two
	// overlapping admissions are guaranteed to serialize.
	lockID := fmt.Sprintf("admission_%s", carType)

	lock := &model.ReservationLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.AdmissionLockTTL),
	}
	if err := s.lockRepo.Acquire(ctx, lock); err != nil {
		if errors.Is(err, reservationerrors.ErrLockHeld) {
			return "", apperrors.StoreConflict("Another admission check for this category is in progress", err)
		}
		return "", apperrors.Internal("Failed to acquire admission lock", err)
	}

	return lockID, nil
}

// withConflictRetry re-runs the whole operation on retryable store
// conflicts. Nothing was committed when a conflict surfaces, so the
// operation re-validates, re-fetches and re-checks admission each attempt.
func (s *reservationService) withConflictRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= s.cfg.AdmissionRetryAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !apperrors.IsRetryable(err) {
			return err
		}
		if attempt == s.cfg.AdmissionRetryAttempts {
			break
		}

		s.cfg.Log.Warn("Store conflict, retrying operation",
			"operation", operation,
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * s.cfg.AdmissionRetryBackoff):
		}
	}
	return err
}

func (s *reservationService) publishEvent(ctx context.Context, eventType string, publish func(context.Context, *model.Reservation) error, reservation *model.Reservation) {
	if err := publish(ctx, reservation); err != nil {
		s.cfg.Log.Warn("Failed to publish reservation event",
			"event_type", eventType,
			"id", reservation.ID,
			"error", err,
		)
	}
}
