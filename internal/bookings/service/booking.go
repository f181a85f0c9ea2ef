package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bikerent/internal/availability"
	bookingserrors "bikerent/internal/bookings/errors"
	"bikerent/internal/bookings/events"
	"bikerent/internal/bookings/lifecycle"
	"bikerent/internal/bookings/repository"
	"bikerent/internal/bookings/validator"
	"bikerent/internal/interval"
	"bikerent/internal/pricing"
	vehicleserrors "bikerent/internal/vehicles/errors"
	vehiclesrepo "bikerent/internal/vehicles/repository"
	"bikerent/pkg/config"
	apperrors "bikerent/pkg/errors"
	"bikerent/pkg/metrics"
	"bikerent/pkg/model"
	"bikerent/pkg/sanitizer"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const lockReleaseTimeout = 5 * time.Second

type BookingService interface {
	// Book admits a booking if the vehicle is free at the location for the
	// whole window. Admissions for the same vehicle are serialized; exactly
	// one of several overlapping concurrent requests can succeed.
	Book(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	// Search reports, for every vehicle in the catalog, which of its
	// locations are free for w, together with the quote for w.
	Search(ctx context.Context, w interval.Window) ([]availability.Result, error)
	GetByID(ctx context.Context, id, userID string) (*model.Booking, error)
	ListForUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error)
	Cancel(ctx context.Context, id, userID string) (*model.Booking, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.BookingLockRepository
	vehicles  vehiclesrepo.VehicleRepository
	validator *validator.BookingValidator
	publisher events.Publisher
	metrics   *metrics.Metrics
	cfg       *config.Config
	locks     *vehicleLocks
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.BookingLockRepository,
	vehicles vehiclesrepo.VehicleRepository,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		vehicles:  vehicles,
		validator: validator,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
		locks:     newVehicleLocks(),
	}
}

func (s *bookingService) Book(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	start := time.Now()
	booking, err := s.book(ctx, req)
	s.metrics.ObserveAdmission(admissionOutcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	if err := s.publisher.BookingConfirmed(context.WithoutCancel(ctx), booking); err != nil {
		s.cfg.Log.Warn("Failed to publish booking confirmed event", "id", booking.ID, "error", err)
	}
	s.cfg.Log.Info("Booking confirmed",
		"id", booking.ID,
		"user_id", booking.UserID,
		"vehicle_id", booking.VehicleID,
		"location", booking.Location,
		"start_time", booking.StartTime,
		"end_time", booking.EndTime,
		"total_price", booking.TotalPrice,
	)
	return booking, nil
}

func (s *bookingService) book(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Booking request cannot be empty")
	}
	s.sanitize(req)

	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Booking request validation failed", "error", err)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, apperrors.Validation("Booking request validation failed", verrs.Details())
		}
		return nil, apperrors.Validation("Booking request validation failed", map[string]any{"error": err.Error()})
	}

	w, err := interval.New(req.StartTime, req.EndTime)
	if err != nil {
		return nil, apperrors.InvalidWindow(err)
	}

	vehicle, err := s.vehicles.FindByID(ctx, req.VehicleID)
	if err != nil {
		if errors.Is(err, vehicleserrors.ErrNotFound) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("Unknown vehicle '%s'", req.VehicleID))
		}
		if ctxErr := contextError(err); ctxErr != nil {
			return nil, ctxErr
		}
		s.cfg.Log.Error("Failed to load vehicle for booking", "vehicle_id", req.VehicleID, "error", err)
		return nil, apperrors.Internal("Failed to load vehicle", err)
	}
	if !vehicle.HasLocation(req.Location) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Vehicle '%s' is not offered at '%s'", vehicle.ID, req.Location))
	}

	quote, err := pricing.Calculate(w, pricing.Rate{PerDay: vehicle.PricePerDay, IncludedKmPerDay: vehicle.IncludedKmPerDay})
	if err != nil {
		return nil, apperrors.InvalidWindow(err)
	}

	for attempt := 0; ; attempt++ {
		booking, err := s.admit(ctx, req, w, quote)
		if err == nil {
			return booking, nil
		}
		if !errors.Is(err, bookingserrors.ErrConflict) {
			return nil, err
		}
		if attempt >= s.cfg.AdmissionMaxRetries {
			s.cfg.Log.Warn("Booking admission gave up after conflicts",
				"vehicle_id", req.VehicleID,
				"location", req.Location,
				"attempts", attempt+1,
				"lock_held", errors.Is(err, bookingserrors.ErrLockHeld),
			)
			return nil, s.exhausted(ctx, req, w, err)
		}

		s.metrics.IncAdmissionRetry()
		s.cfg.Log.Debug("Booking admission conflict, retrying", "vehicle_id", req.VehicleID, "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return nil, contextError(ctx.Err())
		case <-time.After(s.cfg.AdmissionRetryBackoff * time.Duration(attempt+1)):
		}
	}
}

// exhausted maps the last conflict of a failed admission to a client error.
// Only a lost lock race is re-checked: the slot may still be free.
func (s *bookingService) exhausted(ctx context.Context, req *model.BookingRequest, w interval.Window, last error) error {
	if !errors.Is(last, bookingserrors.ErrLockHeld) {
		return apperrors.SlotUnavailable(req.VehicleID, req.Location)
	}
	existing, err := s.repo.FindOverlapping(ctx, req.VehicleID, req.Location, w)
	if err != nil {
		if ctxErr := contextError(err); ctxErr != nil {
			return ctxErr
		}
		s.cfg.Log.Warn("Failed to re-check slot after lock contention", "vehicle_id", req.VehicleID, "error", err)
		return apperrors.VehicleBusy(req.VehicleID)
	}
	if len(existing) > 0 {
		return apperrors.SlotUnavailable(req.VehicleID, req.Location)
	}
	return apperrors.VehicleBusy(req.VehicleID)
}

// admit runs one attempt under the vehicle's locks. It returns ErrConflict
// when another admission won the race and the attempt may be retried.
func (s *bookingService) admit(ctx context.Context, req *model.BookingRequest, w interval.Window, quote pricing.Quote) (*model.Booking, error) {
	unlock, err := s.locks.Lock(ctx, req.VehicleID)
	if err != nil {
		return nil, contextError(err)
	}
	defer unlock()

	lock, err := s.lockRepo.Acquire(ctx, req.VehicleID, uuid.NewString(), s.cfg.BookingLockTTL)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrConflict) {
			return nil, fmt.Errorf("%w: %w", bookingserrors.ErrLockHeld, err)
		}
		if ctxErr := contextError(err); ctxErr != nil {
			return nil, ctxErr
		}
		s.cfg.Log.Error("Failed to acquire booking lock", "vehicle_id", req.VehicleID, "error", err)
		return nil, apperrors.Internal("Failed to acquire booking lock", err)
	}
	defer s.releaseLock(ctx, lock)

	var booking *model.Booking
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		booking = &model.Booking{
			ID:         uuid.NewString(),
			UserID:     req.UserID,
			VehicleID:  req.VehicleID,
			Location:   req.Location,
			StartTime:  w.Start,
			EndTime:    w.End,
			Status:     model.StatusPending,
			TotalPrice: quote.Price,
			IncludedKm: quote.IncludedKm,
			CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
		}
		machine := lifecycle.New(booking)

		existing, err := s.repo.FindOverlapping(txCtx, req.VehicleID, req.Location, w)
		if err != nil {
			return fmt.Errorf("failed to check overlapping bookings: %w", err)
		}
		if len(existing) > 0 {
			_ = machine.Fire(txCtx, lifecycle.EventDiscard)
			return apperrors.SlotUnavailable(req.VehicleID, req.Location)
		}

		if req.TotalPrice != nil && !pricing.WithinTolerance(*req.TotalPrice, quote.Price, s.cfg.PriceTolerance) {
			_ = machine.Fire(txCtx, lifecycle.EventDiscard)
			return apperrors.PriceMismatch(*req.TotalPrice, quote.Price, quote.IncludedKm)
		}

		if err := machine.Fire(txCtx, lifecycle.EventConfirm); err != nil {
			return fmt.Errorf("failed to confirm booking: %w", err)
		}
		return s.repo.Insert(txCtx, booking)
	})
	if err == nil {
		return booking, nil
	}

	switch {
	case errors.Is(err, bookingserrors.ErrConflict), apperrors.IsAppError(err):
		return nil, err
	case contextError(err) != nil:
		return nil, contextError(err)
	default:
		s.cfg.Log.Error("Booking admission transaction failed", "vehicle_id", req.VehicleID, "error", err)
		return nil, apperrors.Internal("Failed to create booking", err)
	}
}

// releaseLock outlives a cancelled request so the lock does not linger
// until its TTL.
func (s *bookingService) releaseLock(ctx context.Context, lock *model.BookingLock) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
	defer cancel()
	if err := s.lockRepo.Release(releaseCtx, lock); err != nil {
		s.cfg.Log.Warn("Failed to release booking lock", "lock_id", lock.ID, "error", err)
	}
}

func (s *bookingService) Search(ctx context.Context, w interval.Window) ([]availability.Result, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSearch(time.Since(start)) }()

	if err := w.Validate(); err != nil {
		return nil, apperrors.InvalidWindow(err)
	}

	var vehicles []*model.Vehicle
	var bookings []*model.Booking
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vehicles, err = s.vehicles.List(gctx)
		if err != nil {
			return fmt.Errorf("failed to list vehicles: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		bookings, err = s.repo.FindConfirmedInWindow(gctx, w)
		if err != nil {
			return fmt.Errorf("failed to load bookings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		if ctxErr := contextError(err); ctxErr != nil {
			return nil, ctxErr
		}
		s.cfg.Log.Error("Availability search failed", "window", w.String(), "error", err)
		return nil, apperrors.Internal("Failed to search availability", err)
	}

	results, err := availability.Compute(vehicles, bookings, w)
	if err != nil {
		return nil, apperrors.InvalidWindow(err)
	}

	s.cfg.Log.Debug("Availability search completed",
		"window", w.String(),
		"vehicles", len(vehicles),
		"bookings", len(bookings),
	)
	return results, nil
}

func (s *bookingService) GetByID(ctx context.Context, id, userID string) (*model.Booking, error) {
	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, apperrors.Forbidden("Booking belongs to another user")
	}
	return b, nil
}

func (s *bookingService) ListForUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.Unauthorized("User identity is required")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByUser(ctx, userID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count user bookings", "user_id", userID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByUser(ctx, userID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list user bookings", "user_id", userID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return bookings, count, nil
}

func (s *bookingService) Cancel(ctx context.Context, id, userID string) (*model.Booking, error) {
	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, apperrors.Forbidden("Only the booking owner can cancel it")
	}

	from := b.Status
	if err := lifecycle.Cancel(ctx, b); err != nil {
		if errors.Is(err, lifecycle.ErrInvalidTransition) {
			return nil, apperrors.Conflict(fmt.Sprintf("Booking is %s and cannot be cancelled", from))
		}
		return nil, apperrors.Internal("Failed to cancel booking", err)
	}

	if err := s.repo.UpdateStatus(ctx, b, from); err != nil {
		switch {
		case errors.Is(err, bookingserrors.ErrConflict):
			return nil, apperrors.Conflict("Booking was changed by another request")
		case errors.Is(err, bookingserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		s.cfg.Log.Error("Failed to persist booking cancellation", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to cancel booking", err)
	}

	s.metrics.IncCancellation()
	if err := s.publisher.BookingCancelled(context.WithoutCancel(ctx), b); err != nil {
		s.cfg.Log.Warn("Failed to publish booking cancelled event", "id", b.ID, "error", err)
	}
	s.cfg.Log.Info("Booking cancelled", "id", b.ID, "user_id", userID, "vehicle_id", b.VehicleID)
	return b, nil
}

// --- Helpers ---

func (s *bookingService) find(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		s.cfg.Log.Error("Failed to get booking by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return b, nil
}

func (s *bookingService) sanitize(req *model.BookingRequest) {
	req.VehicleID = sanitizer.TrimAndNormalize(req.VehicleID)
	req.Location = sanitizer.NormalizeLocation(req.Location)
}

func contextError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Booking request timed out")
	case errors.Is(err, context.Canceled):
		return apperrors.Timeout("Booking request was cancelled")
	}
	return nil
}

func admissionOutcome(err error) string {
	if err == nil {
		return metrics.OutcomeConfirmed
	}
	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		return metrics.OutcomeError
	}
	switch appErr.Code {
	case apperrors.CodeSlotUnavailable:
		return metrics.OutcomeSlotUnavailable
	case apperrors.CodePriceMismatch:
		return metrics.OutcomePriceMismatch
	case apperrors.CodeVehicleBusy:
		return metrics.OutcomeVehicleBusy
	case apperrors.CodeInvalidWindow, apperrors.CodeInvalidInput, apperrors.CodeValidation:
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeError
}
