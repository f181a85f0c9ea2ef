package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bookingserrors "bikerent/internal/bookings/errors"
	"bikerent/internal/bookings/repository"
	"bikerent/internal/bookings/validator"
	"bikerent/internal/interval"
	vehiclesrepo "bikerent/internal/vehicles/repository"
	"bikerent/pkg/config"
	apperrors "bikerent/pkg/errors"
	"bikerent/pkg/logger"
	"bikerent/pkg/metrics"
	"bikerent/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu        sync.Mutex
	confirmed []*model.Booking
	cancelled []*model.Booking
	err       error
}

func (p *recordingPublisher) BookingConfirmed(_ context.Context, b *model.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, b)
	return p.err
}

func (p *recordingPublisher) BookingCancelled(_ context.Context, b *model.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, b)
	return p.err
}

// flakyLockRepository reports the lock as held for the first n attempts.
type flakyLockRepository struct {
	repository.BookingLockRepository
	remaining atomic.Int32
}

func (f *flakyLockRepository) Acquire(ctx context.Context, vehicleID, owner string, ttl time.Duration) (*model.BookingLock, error) {
	if f.remaining.Add(-1) >= 0 {
		return nil, bookingserrors.ErrConflict
	}
	return f.BookingLockRepository.Acquire(ctx, vehicleID, owner, ttl)
}

type fixture struct {
	svc       BookingService
	repo      repository.BookingRepository
	locks     repository.BookingLockRepository
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	cfg       *config.Config
}

func newFixture(t *testing.T, opts ...func(*fixture)) *fixture {
	t.Helper()
	ctx := context.Background()

	log := logger.New(logger.Config{Output: io.Discard})
	cfg := &config.Config{
		Log:                   log,
		AdmissionMaxRetries:   3,
		AdmissionRetryBackoff: time.Millisecond,
		BookingLockTTL:        time.Minute,
		PriceTolerance:        1,
	}

	vehicles := vehiclesrepo.NewMemoryVehicleRepository()
	require.NoError(t, vehicles.Insert(ctx, &model.Vehicle{
		ID: "v-1", Number: "KA01", Name: "Activa", PricePerDay: 100, IncludedKmPerDay: 50,
		Locations: []string{"Downtown", "Airport"},
	}))
	require.NoError(t, vehicles.Insert(ctx, &model.Vehicle{
		ID: "v-2", Number: "KA02", Name: "Pulsar", PricePerDay: 240, IncludedKmPerDay: 120,
		Locations: []string{"Downtown"},
	}))

	m, err := metrics.New(nil)
	require.NoError(t, err)

	f := &fixture{
		repo:      repository.NewMemoryBookingRepository(),
		locks:     repository.NewMemoryBookingLockRepository(),
		publisher: &recordingPublisher{},
		metrics:   m,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.svc = NewBookingService(f.repo, f.locks, vehicles, validator.NewBookingValidator(log), f.publisher, m, cfg)
	return f
}

func request(vehicleID, location string, start, end time.Time) *model.BookingRequest {
	return &model.BookingRequest{
		VehicleID: vehicleID,
		Location:  location,
		StartTime: start,
		EndTime:   end,
		UserID:    "user-1",
	}
}

func price(v int64) *int64 { return &v }

func (f *fixture) scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func requireCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func TestBook_ConfirmsAndPrices(t *testing.T) {
	f := newFixture(t)
	req := request("v-1", "Downtown", monday, monday.Add(36*time.Hour))
	req.TotalPrice = price(150)

	b, err := f.svc.Book(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, model.StatusConfirmed, b.Status)
	assert.Equal(t, int64(150), b.TotalPrice)
	assert.Equal(t, int64(75), b.IncludedKm)
	assert.Equal(t, "user-1", b.UserID)

	stored, err := f.repo.FindByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, stored.Status)

	require.Len(t, f.publisher.confirmed, 1)
	assert.Equal(t, b.ID, f.publisher.confirmed[0].ID)
	assert.Contains(t, f.scrape(t), `bikerent_admissions_total{outcome="confirmed"} 1`)
}

func TestBook_NormalizesInput(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.Book(context.Background(), request("  v-1 ", "  Downtown ", monday, monday.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "v-1", b.VehicleID)
	assert.Equal(t, "Downtown", b.Location)
}

func TestBook_PublishFailureDoesNotFailAdmission(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	_, err := f.svc.Book(context.Background(), request("v-1", "Downtown", monday, monday.Add(time.Hour)))
	assert.NoError(t, err)
}

func TestBook_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		req     *model.BookingRequest
		code    string
		outcome string
	}{
		{"nil request", nil, apperrors.CodeInvalidInput, metrics.OutcomeInvalid},
		{"end before start", request("v-1", "Downtown", monday, monday.Add(-time.Hour)), apperrors.CodeInvalidWindow, metrics.OutcomeInvalid},
		{"zero length", request("v-1", "Downtown", monday, monday), apperrors.CodeInvalidWindow, metrics.OutcomeInvalid},
		{"shorter than a minute", request("v-1", "Downtown", monday, monday.Add(59*time.Second)), apperrors.CodeInvalidWindow, metrics.OutcomeInvalid},
		{"unknown vehicle", request("v-404", "Downtown", monday, monday.Add(time.Hour)), apperrors.CodeInvalidInput, metrics.OutcomeInvalid},
		{"location not offered", request("v-2", "Airport", monday, monday.Add(time.Hour)), apperrors.CodeInvalidInput, metrics.OutcomeInvalid},
		{"location is case sensitive", request("v-1", "downtown", monday, monday.Add(time.Hour)), apperrors.CodeInvalidInput, metrics.OutcomeInvalid},
		{"missing fields", &model.BookingRequest{UserID: "user-1"}, apperrors.CodeValidation, metrics.OutcomeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Book(context.Background(), tt.req)
			requireCode(t, err, tt.code)
			assert.Contains(t, f.scrape(t), fmt.Sprintf(`bikerent_admissions_total{outcome=%q} 1`, tt.outcome))
			assert.Empty(t, f.publisher.confirmed)
		})
	}
}

func TestBook_PriceTolerance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request("v-1", "Downtown", monday, monday.Add(36*time.Hour))
	req.TotalPrice = price(160)
	_, err := f.svc.Book(ctx, req)
	appErr := requireCode(t, err, apperrors.CodePriceMismatch)
	assert.Equal(t, http.StatusConflict, appErr.StatusCode())
	assert.Equal(t, int64(150), appErr.Details["calculated_price"])
	assert.Equal(t, int64(75), appErr.Details["calculated_included_km"])

	found, err := f.repo.FindOverlapping(ctx, "v-1", "Downtown", interval.Window{Start: monday, End: monday.Add(36 * time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, found, "rejected quote must not persist a booking")

	req.TotalPrice = price(149)
	_, err = f.svc.Book(ctx, req)
	assert.NoError(t, err)
}

func TestBook_OverlapAndAdjacency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, request("v-1", "Downtown", monday, monday.Add(48*time.Hour)))
	require.NoError(t, err)

	_, err = f.svc.Book(ctx, request("v-1", "Downtown", monday.Add(24*time.Hour), monday.Add(72*time.Hour)))
	requireCode(t, err, apperrors.CodeSlotUnavailable)

	_, err = f.svc.Book(ctx, request("v-1", "Downtown", monday.Add(48*time.Hour), monday.Add(72*time.Hour)))
	assert.NoError(t, err, "back-to-back windows do not conflict")

	_, err = f.svc.Book(ctx, request("v-1", "Airport", monday, monday.Add(48*time.Hour)))
	assert.NoError(t, err, "locations are independent")
}

func TestBook_SlotUnavailableWinsOverPriceMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, request("v-1", "Downtown", monday, monday.Add(24*time.Hour)))
	require.NoError(t, err)

	req := request("v-1", "Downtown", monday, monday.Add(24*time.Hour))
	req.TotalPrice = price(1)
	_, err = f.svc.Book(ctx, req)
	requireCode(t, err, apperrors.CodeSlotUnavailable)
}

func TestBook_ConcurrentSameSlotAdmitsExactlyOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	var confirmed, unavailable atomic.Int32
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := request("v-1", "Downtown", monday.Add(time.Duration(i)*time.Minute), monday.Add(24*time.Hour))
			req.UserID = fmt.Sprintf("user-%d", i)
			_, err := f.svc.Book(ctx, req)
			switch {
			case err == nil:
				confirmed.Add(1)
			case apperrors.HasCode(err, apperrors.CodeSlotUnavailable):
				unavailable.Add(1)
			default:
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	assert.Equal(t, int32(1), confirmed.Load())
	assert.Equal(t, int32(n-1), unavailable.Load())

	all, err := f.repo.FindConfirmedInWindow(ctx, interval.Window{Start: monday, End: monday.Add(24 * time.Hour)})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBook_ConcurrentDifferentVehiclesAllSucceed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 3)
	for _, r := range []*model.BookingRequest{
		request("v-1", "Downtown", monday, monday.Add(24*time.Hour)),
		request("v-1", "Airport", monday, monday.Add(24*time.Hour)),
		request("v-2", "Downtown", monday, monday.Add(24*time.Hour)),
	} {
		wg.Add(1)
		go func(r *model.BookingRequest) {
			defer wg.Done()
			_, err := f.svc.Book(ctx, r)
			results <- err
		}(r)
	}
	wg.Wait()
	close(results)

	for err := range results {
		assert.NoError(t, err)
	}
}

func TestBook_RetriesWhileLockHeldElsewhere(t *testing.T) {
	flaky := &flakyLockRepository{BookingLockRepository: repository.NewMemoryBookingLockRepository()}
	flaky.remaining.Store(2)
	f := newFixture(t, func(f *fixture) { f.locks = flaky })

	_, err := f.svc.Book(context.Background(), request("v-1", "Downtown", monday, monday.Add(time.Hour)))
	require.NoError(t, err)
	assert.Contains(t, f.scrape(t), "bikerent_admission_retries_total 2")
}

func TestBook_GivesUpAfterMaxRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.locks.Acquire(ctx, "v-1", "other-instance", time.Hour)
	require.NoError(t, err)

	_, err = f.svc.Book(ctx, request("v-1", "Downtown", monday, monday.Add(time.Hour)))
	appErr := requireCode(t, err, apperrors.CodeVehicleBusy)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.StatusCode())
	assert.Equal(t, "v-1", appErr.Details["vehicle_id"])

	out := f.scrape(t)
	assert.Contains(t, out, fmt.Sprintf("bikerent_admission_retries_total %d", f.cfg.AdmissionMaxRetries))
	assert.Contains(t, out, `bikerent_admissions_total{outcome="vehicle_busy"} 1`)
}

func TestBook_LockHeldAndSlotTakenIsSlotUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, request("v-1", "Downtown", monday, monday.Add(2*time.Hour)))
	require.NoError(t, err)

	_, err = f.locks.Acquire(ctx, "v-1", "other-instance", time.Hour)
	require.NoError(t, err)

	_, err = f.svc.Book(ctx, request("v-1", "Downtown", monday.Add(time.Hour), monday.Add(3*time.Hour)))
	requireCode(t, err, apperrors.CodeSlotUnavailable)
}

func TestBook_ReleasesLockAfterAdmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, request("v-1", "Downtown", monday, monday.Add(time.Hour)))
	require.NoError(t, err)

	lock, err := f.locks.Acquire(ctx, "v-1", "next-owner", time.Minute)
	require.NoError(t, err, "advisory lock must be released")
	require.NoError(t, f.locks.Release(ctx, lock))
}

func TestBook_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Book(ctx, request("v-1", "Downtown", monday, monday.Add(time.Hour)))
	requireCode(t, err, apperrors.CodeTimeout)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, request("v-1", "Downtown", monday, monday.Add(48*time.Hour)))
	require.NoError(t, err)

	w := interval.Window{Start: monday.Add(24 * time.Hour), End: monday.Add(60 * time.Hour)}
	results, err := f.svc.Search(ctx, w)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "v-1", results[0].Vehicle.ID)
	assert.Equal(t, map[string]bool{"Downtown": false, "Airport": true}, results[0].Availability)
	assert.Equal(t, int64(150), results[0].Price)
	assert.Equal(t, map[string]bool{"Downtown": true}, results[1].Availability)

	again, err := f.svc.Search(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, results, again)
	assert.Contains(t, f.scrape(t), "bikerent_search_duration_seconds_count 2")
}

func TestSearch_InvalidWindow(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Search(context.Background(), interval.Window{Start: monday, End: monday})
	requireCode(t, err, apperrors.CodeInvalidWindow)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Book(ctx, request("v-1", "Downtown", monday, monday.Add(24*time.Hour)))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, b.ID, "intruder")
	requireCode(t, err, apperrors.CodeForbidden)

	cancelled, err := f.svc.Cancel(ctx, b.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	require.Len(t, f.publisher.cancelled, 1)

	_, err = f.svc.Cancel(ctx, b.ID, "user-1")
	requireCode(t, err, apperrors.CodeConflict)

	_, err = f.svc.Cancel(ctx, "missing", "user-1")
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = f.svc.Book(ctx, request("v-1", "Downtown", monday, monday.Add(24*time.Hour)))
	assert.NoError(t, err, "cancelled window is free again")
}

func TestGetByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Book(ctx, request("v-1", "Downtown", monday, monday.Add(time.Hour)))
	require.NoError(t, err)

	got, err := f.svc.GetByID(ctx, b.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = f.svc.GetByID(ctx, b.ID, "user-2")
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.GetByID(ctx, "", "user-1")
	requireCode(t, err, apperrors.CodeInvalidInput)
}

func TestListForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		start := monday.Add(time.Duration(i) * 24 * time.Hour)
		_, err := f.svc.Book(ctx, request("v-1", "Downtown", start, start.Add(time.Hour)))
		require.NoError(t, err)
	}
	other := request("v-2", "Downtown", monday, monday.Add(time.Hour))
	other.UserID = "user-2"
	_, err := f.svc.Book(ctx, other)
	require.NoError(t, err)

	page, total, err := f.svc.ListForUser(ctx, "user-1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.True(t, page[0].StartTime.After(page[1].StartTime), "newest rental first")

	_, _, err = f.svc.ListForUser(ctx, "", 10, 0)
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestVehicleLocks(t *testing.T) {
	locks := newVehicleLocks()

	unlock, err := locks.Lock(context.Background(), "v-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locks.Lock(ctx, "v-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	otherUnlock, err := locks.Lock(context.Background(), "v-2")
	require.NoError(t, err, "different vehicles do not contend")
	otherUnlock()

	unlock()
	unlock()
	assert.Equal(t, 0, locks.size())
}
