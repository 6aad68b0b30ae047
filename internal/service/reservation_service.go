package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/queue"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

const (
	// MaxIdempotencyKeyLen bounds caller supplied idempotency keys.
	MaxIdempotencyKeyLen = 128

	defaultReserveTimeout      = 5 * time.Second
	defaultCompensationTries   = 3
	defaultCompensationBackoff = 50 * time.Millisecond
	publishTimeout             = 2 * time.Second
)

// ReserveInput is one reservation attempt. UserID comes from the verified
// token; IdempotencyKey is optional.
type ReserveInput struct {
	UserID         uint64
	ScreeningID    uint64
	SeatIDs        []uint64
	IdempotencyKey string
}

type idempotencyKey struct {
	userID uint64
	key    string
}

// ReservationService is the public face of the engine.
type ReservationService struct {
	inventory *Inventory
	ledger    *Ledger
	catalog   Catalog
	replay    ReplayCache
	events    EventPublisher
	log       logrus.FieldLogger

	timeout             time.Duration
	compensationTries   int
	compensationBackoff time.Duration
	now                 func() time.Time
	newID               func() string

	keys *laneArena[idempotencyKey]
}

// Option configures a ReservationService.
type Option func(*ReservationService)

// WithReplayCache answers idempotent retries from cache before the ledger.
func WithReplayCache(c ReplayCache) Option { return func(s *ReservationService) { s.replay = c } }

// WithEventPublisher publishes reservation.confirmed after every booking.
func WithEventPublisher(p EventPublisher) Option { return func(s *ReservationService) { s.events = p } }

// WithLogger sets the logger used for reserve outcomes and compensation.
func WithLogger(l logrus.FieldLogger) Option { return func(s *ReservationService) { s.log = l } }

// WithTimeout bounds a whole Reserve call.
func WithTimeout(d time.Duration) Option {
	return func(s *ReservationService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithCompensation sets how often a rollback is attempted and the base delay
// between attempts.
func WithCompensation(attempts int, backoff time.Duration) Option {
	return func(s *ReservationService) {
		if attempts > 0 {
			s.compensationTries = attempts
		}
		if backoff >= 0 {
			s.compensationBackoff = backoff
		}
	}
}

// WithClock replaces time.Now for reservation timestamps.
func WithClock(now func() time.Time) Option { return func(s *ReservationService) { s.now = now } }

// WithIDGenerator replaces the UUID reservation id generator.
func WithIDGenerator(gen func() string) Option { return func(s *ReservationService) { s.newID = gen } }

// NewReservationService wires the façade.
func NewReservationService(inventory *Inventory, ledger *Ledger, catalog Catalog, opts ...Option) *ReservationService {
	s := &ReservationService{
		inventory:           inventory,
		ledger:              ledger,
		catalog:             catalog,
		log:                 logrus.StandardLogger(),
		timeout:             defaultReserveTimeout,
		compensationTries:   defaultCompensationTries,
		compensationBackoff: defaultCompensationBackoff,
		now:                 time.Now,
		newID:               func() string { return uuid.NewString() },
		keys:                newLaneArena[idempotencyKey](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reserve books the requested seats for the user or explains why not. The
// error is one of *ValidationError, repository.ErrScreeningNotFound,
// *ConflictError, *CompensationError or ErrOutcomeUnknown. When the caller's
// context is cancelled ErrOutcomeUnknown also matches context.Canceled.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (*model.Reservation, error) {
	if err := validateReserve(in); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.reserve(ctx, in)
	if err == nil {
		return res, nil
	}
	var comp *CompensationError
	if errors.As(err, &comp) {
		return nil, err
	}
	entry := s.log.WithFields(logrus.Fields{
		"user_id":      in.UserID,
		"screening_id": in.ScreeningID,
	}).WithError(err)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		entry.Warn("reserve: budget exceeded")
		return nil, fmt.Errorf("%w: %v", ErrOutcomeUnknown, err)
	case errors.Is(err, context.Canceled):
		entry.Info("reserve: caller went away")
		return nil, fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
	}
	return nil, err
}

func (s *ReservationService) reserve(ctx context.Context, in ReserveInput) (*model.Reservation, error) {
	if in.IdempotencyKey != "" {
		release, err := s.keys.acquire(ctx, idempotencyKey{userID: in.UserID, key: in.IdempotencyKey})
		if err != nil {
			return nil, err
		}
		defer release()
		prior, err := s.lookupPrior(ctx, in)
		if err != nil || prior != nil {
			return prior, err
		}
	}

	screening, err := s.catalog.GetScreening(ctx, in.ScreeningID)
	if err != nil {
		return nil, fmt.Errorf("load screening %d: %w", in.ScreeningID, err)
	}
	movie, err := s.catalog.GetMovie(ctx, screening.MovieID)
	if err != nil {
		return nil, fmt.Errorf("load movie %d: %w", screening.MovieID, err)
	}

	id := s.newID()
	claim, err := s.inventory.TryClaim(ctx, in.ScreeningID, in.SeatIDs, id)
	if err != nil {
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			// The conditional update may have been applied even though it
			// reported an error; undo whatever id booked.
			return nil, s.releaseFailedClaim(ctx, in, id, err)
		}
		if in.IdempotencyKey != "" {
			// Another process may have completed this exact request.
			prior, perr := s.lookupPrior(ctx, in)
			if perr != nil {
				return nil, perr
			}
			if prior != nil {
				return prior, nil
			}
		}
		return nil, err
	}

	labels := make([]string, len(claim.Seats))
	for i, seat := range claim.Seats {
		labels[i] = seat.Label()
	}
	res := &model.Reservation{
		ID:             id,
		UserID:         in.UserID,
		ScreeningID:    in.ScreeningID,
		SeatIDs:        append([]uint64(nil), in.SeatIDs...),
		SeatLabels:     labels,
		AmountCents:    int64(len(in.SeatIDs)) * screening.PricePerSeatCents,
		MovieID:        screening.MovieID,
		MovieTitle:     movie.Title,
		MovieImgURL:    movie.ImgURL,
		ScreeningTime:  screening.StartsAt,
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      s.now().UTC(),
	}
	if _, err := s.ledger.Record(ctx, res); err != nil {
		return s.compensate(ctx, in, res, err)
	}
	return s.confirm(ctx, res), nil
}

// confirm runs the side effects of a recorded reservation.
func (s *ReservationService) confirm(ctx context.Context, res *model.Reservation) *model.Reservation {
	s.remember(ctx, res)
	s.publish(ctx, res)
	s.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"user_id":        res.UserID,
		"screening_id":   res.ScreeningID,
		"seats":          res.SeatLabels,
	}).Info("reservation confirmed")
	return res
}

// releaseFailedClaim undoes a claim that failed with something other than a
// conflict. Seats not booked under reservationID are left alone.
func (s *ReservationService) releaseFailedClaim(ctx context.Context, in ReserveInput, reservationID string, cause error) error {
	res := &model.Reservation{ID: reservationID, UserID: in.UserID, ScreeningID: in.ScreeningID, SeatIDs: in.SeatIDs}
	if err := s.rollback(ctx, res); err != nil {
		s.log.WithFields(logrus.Fields{
			"reservation_id":          reservationID,
			"screening_id":            in.ScreeningID,
			"seat_ids":                in.SeatIDs,
			"reconciliation_required": true,
		}).WithError(err).Error("reserve: claim failed and its seats could not be released")
		return &CompensationError{
			ReservationID: reservationID,
			ScreeningID:   in.ScreeningID,
			SeatIDs:       in.SeatIDs,
			Cause:         cause,
			RollbackErr:   err,
		}
	}
	return cause
}

// compensate releases the claimed seats after a failed ledger write, unless
// the ledger shows the reservation was recorded after all.
func (s *ReservationService) compensate(ctx context.Context, in ReserveInput, res *model.Reservation, cause error) (*model.Reservation, error) {
	entry := s.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"user_id":        res.UserID,
		"screening_id":   res.ScreeningID,
		"seat_ids":       res.SeatIDs,
	})
	comp := &CompensationError{
		ReservationID: res.ID,
		ScreeningID:   res.ScreeningID,
		SeatIDs:       res.SeatIDs,
		Cause:         cause,
	}

	// A write can fail after it committed (lost ack, deadline during commit).
	// Seats of a recorded reservation must never be released.
	stored, err := s.recorded(ctx, res.ID)
	if err != nil {
		comp.RollbackErr = fmt.Errorf("check ledger before release: %w", err)
		entry.WithError(err).WithField("reconciliation_required", true).
			Error("reserve: ledger state unknown, seats left booked")
		return nil, comp
	}
	if stored != nil && !sameRequest(stored, ReserveInput{UserID: res.UserID, ScreeningID: res.ScreeningID, SeatIDs: res.SeatIDs}) {
		comp.RollbackErr = fmt.Errorf("reservation id %s already belongs to another request", res.ID)
		entry.WithError(cause).WithField("reconciliation_required", true).
			Error("reserve: reservation id collision, seats left booked")
		return nil, comp
	}
	if stored != nil {
		entry.WithError(cause).Warn("reserve: ledger write reported an error but the reservation was recorded")
		return s.confirm(ctx, stored), nil
	}

	if err := s.rollback(ctx, res); err != nil {
		comp.RollbackErr = err
		entry.WithError(err).WithField("reconciliation_required", true).
			Error("reserve: seats left booked without a ledger entry")
		return nil, comp
	}
	entry.WithError(cause).Warn("reserve: ledger write failed, seats released")

	if errors.Is(cause, repository.ErrDuplicateReservation) && in.IdempotencyKey != "" {
		prior, err := s.lookupPrior(context.WithoutCancel(ctx), in)
		if err != nil && errors.Is(err, ErrIdempotencyMismatch) {
			return nil, err
		}
		if prior != nil {
			return prior, nil
		}
	}
	return nil, comp
}

// recorded reports the reservation stored under id, or nil when the ledger
// has no such entry. It reads on a detached context.
func (s *ReservationService) recorded(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	res, err := s.ledger.Get(ctx, id)
	switch {
	case errors.Is(err, repository.ErrReservationNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return res, nil
}

// rollback retries Release with a linear backoff. It runs detached from the
// request deadline: an expired budget must not leave seats stranded.
func (s *ReservationService) rollback(ctx context.Context, res *model.Reservation) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	var err error
	for attempt := 1; attempt <= s.compensationTries; attempt++ {
		if err = s.inventory.Release(ctx, res.ScreeningID, res.SeatIDs, res.ID); err == nil {
			return nil
		}
		s.log.WithError(err).WithFields(logrus.Fields{
			"reservation_id": res.ID,
			"attempt":        attempt,
		}).Warn("reserve: release attempt failed")
		if attempt == s.compensationTries {
			break
		}
		select {
		case <-time.After(s.compensationBackoff * time.Duration(attempt)):
		case <-ctx.Done():
			return fmt.Errorf("%w (after %d attempts: %v)", ctx.Err(), attempt, err)
		}
	}
	return err
}

// lookupPrior returns the reservation an earlier call with the same
// idempotency key produced, or nil when the key is unused.
func (s *ReservationService) lookupPrior(ctx context.Context, in ReserveInput) (*model.Reservation, error) {
	var prior *model.Reservation
	if s.replay != nil {
		id, found, err := s.replay.Get(ctx, in.UserID, in.IdempotencyKey)
		switch {
		case err != nil:
			s.log.WithError(err).Warn("reserve: replay cache lookup failed")
		case found:
			res, err := s.ledger.Get(ctx, id)
			if err == nil {
				prior = res
			} else if !errors.Is(err, repository.ErrReservationNotFound) {
				return nil, fmt.Errorf("load replayed reservation: %w", err)
			}
		}
	}
	if prior == nil {
		res, err := s.ledger.FindByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey)
		switch {
		case errors.Is(err, repository.ErrReservationNotFound):
			return nil, nil
		case err != nil:
			return nil, fmt.Errorf("lookup idempotency key: %w", err)
		}
		prior = res
	}
	if !sameRequest(prior, in) {
		return nil, ErrIdempotencyMismatch
	}
	return prior, nil
}

func (s *ReservationService) remember(ctx context.Context, res *model.Reservation) {
	if s.replay == nil || res.IdempotencyKey == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.replay.Put(ctx, res.UserID, res.IdempotencyKey, res.ID); err != nil {
		s.log.WithError(err).WithField("reservation_id", res.ID).Warn("reserve: replay cache write failed")
	}
}

func (s *ReservationService) publish(ctx context.Context, res *model.Reservation) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.PublishReservationConfirmed(ctx, queue.NewReservationConfirmedEvent(res)); err != nil {
		s.log.WithError(err).WithField("reservation_id", res.ID).Warn("reserve: publish event failed")
	}
}

// Seats lists the screening's seats row-major.
func (s *ReservationService) Seats(ctx context.Context, screeningID uint64) ([]model.Seat, error) {
	return s.inventory.GetSeats(ctx, screeningID)
}

// ReservationsByUser lists the user's reservations, most recent first.
func (s *ReservationService) ReservationsByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return s.ledger.ListByUser(ctx, userID)
}

// Reservation returns a single reservation by id.
func (s *ReservationService) Reservation(ctx context.Context, id string) (*model.Reservation, error) {
	return s.ledger.Get(ctx, id)
}

// Screening returns a screening together with its movie.
func (s *ReservationService) Screening(ctx context.Context, id uint64) (*model.Screening, *model.Movie, error) {
	screening, err := s.catalog.GetScreening(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	movie, err := s.catalog.GetMovie(ctx, screening.MovieID)
	if err != nil {
		return nil, nil, err
	}
	return screening, movie, nil
}

func validateReserve(in ReserveInput) error {
	if in.UserID == 0 {
		return &ValidationError{Field: "userId", Reason: "required"}
	}
	if in.ScreeningID == 0 {
		return &ValidationError{Field: "screeningId", Reason: "required"}
	}
	if len(in.SeatIDs) == 0 {
		return &ValidationError{Field: "seatIds", Reason: "at least one seat is required"}
	}
	seen := make(map[uint64]struct{}, len(in.SeatIDs))
	for _, id := range in.SeatIDs {
		if id == 0 {
			return &ValidationError{Field: "seatIds", Reason: "seat id must be positive"}
		}
		if _, dup := seen[id]; dup {
			return &ValidationError{Field: "seatIds", Reason: fmt.Sprintf("duplicate seat id %d", id)}
		}
		seen[id] = struct{}{}
	}
	if len(in.IdempotencyKey) > MaxIdempotencyKeyLen {
		return &ValidationError{Field: "idempotencyKey", Reason: fmt.Sprintf("longer than %d characters", MaxIdempotencyKeyLen)}
	}
	return nil
}

// sameRequest compares screening and seat set, ignoring seat order.
func sameRequest(res *model.Reservation, in ReserveInput) bool {
	if res.UserID != in.UserID || res.ScreeningID != in.ScreeningID || len(res.SeatIDs) != len(in.SeatIDs) {
		return false
	}
	a := append([]uint64(nil), res.SeatIDs...)
	b := append([]uint64(nil), in.SeatIDs...)
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
