package validator

import (
	"errors"
	"io"
	"testing"
	"time"

	"fleetrental/pkg/logger"
	"fleetrental/pkg/model"
)

func testValidator() *ReservationValidator {
	return NewReservationValidator(logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard}))
}

func TestValidate_ValidRequest(t *testing.T) {
	v := testValidator()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	req := &model.ReservationRequest{
		Category: "suv",
		StartAt:  now.Add(24 * time.Hour),
		Days:     3,
	}

	carType, err := v.Validate(req, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if carType != model.SUV {
		t.Errorf("expected %s, got %s", model.SUV, carType)
	}
}

func TestValidate_MissingFields(t *testing.T) {
	v := testValidator()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	_, err := v.Validate(&model.ReservationRequest{}, now)
	if err == nil {
		t.Fatal("expected validation errors")
	}

	var validationErrs ValidationErrors
	if !errors.As(err, &validationErrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	fields := validationErrs.Fields()
	for _, field := range []string{"category", "startAt", "days"} {
		if _, ok := fields[field]; !ok {
			t.Errorf("expected error for field %q, got %v", field, fields)
		}
	}
}

func TestValidate_PastStart(t *testing.T) {
	v := testValidator()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	req := &model.ReservationRequest{
		Category: "sedan",
		StartAt:  now.Add(-time.Minute),
		Days:     2,
	}

	_, err := v.Validate(req, now)
	var validationErrs ValidationErrors
	if !errors.As(err, &validationErrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if validationErrs.Fields()["startAt"] != "startAt must be in the future" {
		t.Errorf("unexpected startAt error: %v", validationErrs.Fields())
	}
}

func TestValidate_StartExactlyNow(t *testing.T) {
	v := testValidator()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	// Strictly after now: the boundary instant itself is rejected.
	req := &model.ReservationRequest{
		Category: "sedan",
		StartAt:  now,
		Days:     2,
	}

	if _, err := v.Validate(req, now); err == nil {
		t.Fatal("expected start == now to be rejected")
	}
}

func TestValidate_UnknownCategory(t *testing.T) {
	v := testValidator()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	req := &model.ReservationRequest{
		Category: "crossover",
		StartAt:  now.Add(24 * time.Hour),
		Days:     2,
	}

	_, err := v.Validate(req, now)
	var validationErrs ValidationErrors
	if !errors.As(err, &validationErrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if validationErrs.Fields()["category"] != "Unknown carType: crossover (allowed: sedan, suv, van)" {
		t.Errorf("unexpected category error: %v", validationErrs.Fields())
	}
}

func TestValidate_NonPositiveDays(t *testing.T) {
	v := testValidator()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	for _, days := range []int{-1, -100} {
		req := &model.ReservationRequest{
			Category: "van",
			StartAt:  now.Add(24 * time.Hour),
			Days:     days,
		}

		_, err := v.Validate(req, now)
		var validationErrs ValidationErrors
		if !errors.As(err, &validationErrs) {
			t.Fatalf("days=%d: expected ValidationErrors, got %v", days, err)
		}
		if validationErrs.Fields()["days"] != "days must be at least 1" {
			t.Errorf("days=%d: unexpected error: %v", days, validationErrs.Fields())
		}
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	v := testValidator()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	req := &model.ReservationRequest{
		Category: "bicycle",
		StartAt:  now.Add(-time.Hour),
		Days:     -2,
	}

	_, err := v.Validate(req, now)
	var validationErrs ValidationErrors
	if !errors.As(err, &validationErrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(validationErrs) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(validationErrs), validationErrs)
	}
}
