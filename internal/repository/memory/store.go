// Package memory is an in-process repository.Store used by tests and by the
// server when no database is configured. Transactions are serialized by a
// single mutex and rolled back from a snapshot on error.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type state struct {
	cars          map[string]domain.Car
	reservations  map[string]domain.Reservation
	payments      map[string]domain.Payment
	checklists    map[string]domain.Checklist
	statusChanges []domain.StatusChange
	seq           int64
}

func newState() *state {
	return &state{
		cars:         make(map[string]domain.Car),
		reservations: make(map[string]domain.Reservation),
		payments:     make(map[string]domain.Payment),
		checklists:   make(map[string]domain.Checklist),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.cars {
		c.cars[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = copyReservation(v)
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.checklists {
		c.checklists[k] = copyChecklist(v)
	}
	c.statusChanges = append([]domain.StatusChange(nil), s.statusChanges...)
	c.seq = s.seq
	return c
}

type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&view{store: s, locked: true}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Cars() repository.CarRepository {
	return &carRepo{view{store: s}}
}

func (s *Store) Reservations() repository.ReservationRepository {
	return &reservationRepo{view{store: s}}
}

func (s *Store) Payments() repository.PaymentRepository {
	return &paymentRepo{view{store: s}}
}

func (s *Store) Checklists() repository.ChecklistRepository {
	return &checklistRepo{view{store: s}}
}

func (s *Store) StatusChanges() repository.StatusChangeRepository {
	return &statusChangeRepo{view{store: s}}
}

// view is a handle on the store. Inside InTx the mutex is already held.
type view struct {
	store  *Store
	locked bool
}

func (v *view) do(fn func(st *state) error) error {
	if !v.locked {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
	}
	return fn(v.store.st)
}

func (v *view) Cars() repository.CarRepository                   { return &carRepo{*v} }
func (v *view) Reservations() repository.ReservationRepository   { return &reservationRepo{*v} }
func (v *view) Payments() repository.PaymentRepository           { return &paymentRepo{*v} }
func (v *view) Checklists() repository.ChecklistRepository       { return &checklistRepo{*v} }
func (v *view) StatusChanges() repository.StatusChangeRepository { return &statusChangeRepo{*v} }

type carRepo struct{ view }

func (r *carRepo) Create(ctx context.Context, car *domain.Car) error {
	return r.do(func(st *state) error {
		for _, c := range st.cars {
			if c.ID == car.ID || c.LicensePlate == car.LicensePlate {
				return domain.ErrConflict
			}
		}
		now := time.Now().UTC()
		car.CreatedAt, car.UpdatedAt = now, now
		st.cars[car.ID] = *car
		return nil
	})
}

func (r *carRepo) GetByID(ctx context.Context, id string) (*domain.Car, error) {
	var out *domain.Car
	err := r.do(func(st *state) error {
		c, ok := st.cars[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r *carRepo) GetForUpdate(ctx context.Context, id string) (*domain.Car, error) {
	return r.GetByID(ctx, id)
}

func (r *carRepo) List(ctx context.Context, filter repository.CarFilter) ([]domain.Car, error) {
	var out []domain.Car
	err := r.do(func(st *state) error {
		for _, c := range st.cars {
			if filter.Status != "" && c.Status != filter.Status {
				continue
			}
			if filter.Segment != "" && c.Segment != filter.Segment {
				continue
			}
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *carRepo) UpdateStatus(ctx context.Context, id string, status domain.CarStatus) error {
	return r.do(func(st *state) error {
		c, ok := st.cars[id]
		if !ok {
			return domain.ErrNotFound
		}
		c.Status = status
		c.UpdatedAt = time.Now().UTC()
		st.cars[id] = c
		return nil
	})
}

type reservationRepo struct{ view }

// checkExclusion mirrors the database exclusion constraint on blocking
// reservations of the same car.
func checkExclusion(st *state, r domain.Reservation) error {
	if !r.Status.Blocks() {
		return nil
	}
	for _, other := range st.reservations {
		if other.ID == r.ID || other.CarID != r.CarID || !other.Status.Blocks() {
			continue
		}
		if other.Interval().Overlaps(r.Interval()) {
			return domain.ErrConflict
		}
	}
	return nil
}

func (r *reservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	return r.do(func(st *state) error {
		if _, ok := st.reservations[res.ID]; ok {
			return domain.ErrConflict
		}
		if err := checkExclusion(st, *res); err != nil {
			return err
		}
		now := time.Now().UTC()
		res.CreatedAt, res.UpdatedAt = now, now
		st.reservations[res.ID] = copyReservation(*res)
		return nil
	})
}

func (r *reservationRepo) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	var out *domain.Reservation
	err := r.do(func(st *state) error {
		res, ok := st.reservations[id]
		if !ok {
			return domain.ErrNotFound
		}
		c := copyReservation(res)
		out = &c
		return nil
	})
	return out, err
}

func (r *reservationRepo) GetForUpdate(ctx context.Context, id string) (*domain.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r *reservationRepo) Update(ctx context.Context, res *domain.Reservation) error {
	return r.do(func(st *state) error {
		if _, ok := st.reservations[res.ID]; !ok {
			return domain.ErrNotFound
		}
		if err := checkExclusion(st, *res); err != nil {
			return err
		}
		res.UpdatedAt = time.Now().UTC()
		st.reservations[res.ID] = copyReservation(*res)
		return nil
	})
}

func (r *reservationRepo) FindBlocking(ctx context.Context, carID string, iv domain.Interval, excludeID string) ([]domain.Reservation, error) {
	var out []domain.Reservation
	err := r.do(func(st *state) error {
		for _, res := range st.reservations {
			if res.CarID != carID || res.ID == excludeID || !res.Status.Blocks() {
				continue
			}
			if res.Interval().Overlaps(iv) {
				out = append(out, copyReservation(res))
			}
		}
		return nil
	})
	sortReservations(out)
	return out, err
}

func (r *reservationRepo) List(ctx context.Context, filter repository.ReservationFilter) ([]domain.Reservation, error) {
	var out []domain.Reservation
	err := r.do(func(st *state) error {
		for _, res := range st.reservations {
			if filter.UserID != "" && res.UserID != filter.UserID {
				continue
			}
			if filter.CarID != "" && res.CarID != filter.CarID {
				continue
			}
			if len(filter.Status) > 0 && !containsStatus(filter.Status, res.Status) {
				continue
			}
			out = append(out, copyReservation(res))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortReservations(out)
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (r *reservationRepo) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	var out []domain.Reservation
	err := r.do(func(st *state) error {
		for _, res := range st.reservations {
			if res.Status != domain.ReservationStatusPending || res.DepositPaid {
				continue
			}
			if res.HoldExpiresAt != nil && res.HoldExpiresAt.Before(now) {
				out = append(out, copyReservation(res))
			}
		}
		return nil
	})
	sortReservations(out)
	return paginate(out, 0, limit), err
}

type paymentRepo struct{ view }

func (r *paymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	return r.do(func(st *state) error {
		if _, ok := st.payments[p.ID]; ok {
			return domain.ErrConflict
		}
		p.CreatedAt = time.Now().UTC()
		st.payments[p.ID] = *p
		return nil
	})
}

func (r *paymentRepo) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.do(func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *paymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	return r.do(func(st *state) error {
		if _, ok := st.payments[p.ID]; !ok {
			return domain.ErrNotFound
		}
		st.payments[p.ID] = *p
		return nil
	})
}

func (r *paymentRepo) ListByReservation(ctx context.Context, reservationID string) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.do(func(st *state) error {
		for _, p := range st.payments {
			if p.ReservationID == reservationID {
				out = append(out, p)
			}
		}
		return nil
	})
	sortPayments(out)
	return out, err
}

func (r *paymentRepo) FindPending(ctx context.Context, reservationID string, typ domain.PaymentType) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.do(func(st *state) error {
		for _, p := range st.payments {
			if p.ReservationID == reservationID && p.Type == typ && p.Status == domain.PaymentStatusPending {
				found := p
				out = &found
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (r *paymentRepo) ListUnappliedDeposits(ctx context.Context, limit int) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.do(func(st *state) error {
		for _, p := range st.payments {
			if p.Type != domain.PaymentTypeDeposit || p.Status != domain.PaymentStatusCompleted {
				continue
			}
			if res, ok := st.reservations[p.ReservationID]; ok && res.Status == domain.ReservationStatusPending {
				out = append(out, p)
			}
		}
		return nil
	})
	sortPayments(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type checklistRepo struct{ view }

func (r *checklistRepo) Create(ctx context.Context, c *domain.Checklist) error {
	return r.do(func(st *state) error {
		for _, existing := range st.checklists {
			if existing.ReservationID == c.ReservationID && existing.Type == c.Type {
				return domain.ErrConflict
			}
		}
		c.CreatedAt = time.Now().UTC()
		st.checklists[c.ID] = copyChecklist(*c)
		return nil
	})
}

func (r *checklistRepo) GetByReservation(ctx context.Context, reservationID string, typ domain.ChecklistType) (*domain.Checklist, error) {
	var out *domain.Checklist
	err := r.do(func(st *state) error {
		for _, c := range st.checklists {
			if c.ReservationID == reservationID && c.Type == typ {
				found := copyChecklist(c)
				out = &found
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (r *checklistRepo) ListByReservation(ctx context.Context, reservationID string) ([]domain.Checklist, error) {
	var out []domain.Checklist
	err := r.do(func(st *state) error {
		for _, c := range st.checklists {
			if c.ReservationID == reservationID {
				out = append(out, copyChecklist(c))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

type statusChangeRepo struct{ view }

func (r *statusChangeRepo) Append(ctx context.Context, c *domain.StatusChange) error {
	return r.do(func(st *state) error {
		st.seq++
		c.ID = st.seq
		c.CreatedAt = time.Now().UTC()
		st.statusChanges = append(st.statusChanges, *c)
		return nil
	})
}

func (r *statusChangeRepo) ListByReservation(ctx context.Context, reservationID string) ([]domain.StatusChange, error) {
	var out []domain.StatusChange
	err := r.do(func(st *state) error {
		for _, c := range st.statusChanges {
			if c.ReservationID == reservationID {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

func copyReservation(r domain.Reservation) domain.Reservation {
	r.Extras = append([]domain.ExtraLineItem(nil), r.Extras...)
	return r
}

func copyChecklist(c domain.Checklist) domain.Checklist {
	c.ExtraCharges = append([]domain.ExtraCharge(nil), c.ExtraCharges...)
	return c
}

func containsStatus(list []domain.ReservationStatus, s domain.ReservationStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortReservations(rs []domain.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].StartDate.Equal(rs[j].StartDate) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].StartDate.Before(rs[j].StartDate)
	})
}

func sortPayments(ps []domain.Payment) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].CreatedAt.Before(ps[j].CreatedAt)
	})
}

func paginate(rs []domain.Reservation, offset, limit int) []domain.Reservation {
	if offset > len(rs) {
		return nil
	}
	rs = rs[offset:]
	if limit > 0 && len(rs) > limit {
		rs = rs[:limit]
	}
	return rs
}
