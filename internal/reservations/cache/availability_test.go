package cache

import (
	"errors"
	"io"
	"testing"
	"time"

	"fleetrental/pkg/logger"
	"fleetrental/pkg/model"
)

func testCache() *AvailabilityCache {
	return New(logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard}))
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	c := testCache()
	startAt := time.Date(2026, 9, 1, 10, 15, 0, 0, time.UTC)

	computes := 0
	compute := func() (int64, error) {
		computes++
		return 4, nil
	}

	for i := 0; i < 3; i++ {
		value, err := c.GetOrCompute(model.Sedan, startAt, 2, compute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != 4 {
			t.Errorf("expected 4, got %d", value)
		}
	}

	if computes != 1 {
		t.Errorf("expected 1 compute, got %d", computes)
	}
}

func TestGetOrCompute_SubHourStartsShareBucket(t *testing.T) {
	c := testCache()
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	computes := 0
	compute := func() (int64, error) {
		computes++
		return 7, nil
	}

	// Any start inside the same hour collapses onto one key.
	starts := []time.Time{
		base,
		base.Add(5 * time.Minute),
		base.Add(59*time.Minute + 59*time.Second),
	}
	for _, startAt := range starts {
		if _, err := c.GetOrCompute(model.Van, startAt, 3, compute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if computes != 1 {
		t.Errorf("expected 1 compute for one bucket, got %d", computes)
	}

	// The next hour is a different bucket.
	if _, err := c.GetOrCompute(model.Van, base.Add(time.Hour), 3, compute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if computes != 2 {
		t.Errorf("expected 2 computes across buckets, got %d", computes)
	}
}

func TestGetOrCompute_DistinctDimensions(t *testing.T) {
	c := testCache()
	startAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	computes := 0
	compute := func() (int64, error) {
		computes++
		return 1, nil
	}

	c.GetOrCompute(model.Sedan, startAt, 2, compute)
	c.GetOrCompute(model.SUV, startAt, 2, compute)
	c.GetOrCompute(model.Sedan, startAt, 3, compute)

	if computes != 3 {
		t.Errorf("expected 3 computes, got %d", computes)
	}
	if c.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", c.Len())
	}
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c := testCache()
	startAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	boom := errors.New("store unavailable")
	if _, err := c.GetOrCompute(model.Sedan, startAt, 2, func() (int64, error) {
		return 0, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected failed compute not to be cached, got %d entries", c.Len())
	}

	value, err := c.GetOrCompute(model.Sedan, startAt, 2, func() (int64, error) {
		return 9, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 9 {
		t.Errorf("expected 9, got %d", value)
	}
}

func TestInvalidateAll(t *testing.T) {
	c := testCache()
	startAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	compute := func() (int64, error) { return 2, nil }
	c.GetOrCompute(model.Sedan, startAt, 2, compute)
	c.GetOrCompute(model.SUV, startAt, 5, compute)

	c.InvalidateAll()
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}

	computes := 0
	c.GetOrCompute(model.Sedan, startAt, 2, func() (int64, error) {
		computes++
		return 2, nil
	})
	if computes != 1 {
		t.Errorf("expected recompute after eviction, got %d computes", computes)
	}
}
