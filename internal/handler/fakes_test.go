package handler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/car-rental/internal/model"
	"github.com/iliyamo/car-rental/internal/repository"
)

type stubUsers struct {
	mu   sync.Mutex
	rows []model.User
}

func (s *stubUsers) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = uint64(len(s.rows) + 1)
	s.rows = append(s.rows, *u)
	return nil
}

func (s *stubUsers) find(match func(model.User) bool) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.rows {
		if match(u) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *stubUsers) GetByUsername(_ context.Context, name string) (model.User, error) {
	return s.find(func(u model.User) bool { return strings.EqualFold(u.Username, name) })
}

func (s *stubUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	return s.find(func(u model.User) bool { return u.ID == id })
}

func (s *stubUsers) UsernameTaken(_ context.Context, name string, excludeID uint64) (bool, error) {
	_, err := s.find(func(u model.User) bool { return u.ID != excludeID && strings.EqualFold(u.Username, name) })
	return err == nil, nil
}

func (s *stubUsers) UpdateProfile(_ context.Context, id uint64, username, hash *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == id {
			if username != nil {
				s.rows[i].Username = *username
			}
			if hash != nil {
				s.rows[i].PasswordHash = *hash
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

type stubTokens struct {
	mu   sync.Mutex
	rows map[string]*model.RefreshToken
}

func newStubTokens() *stubTokens { return &stubTokens{rows: map[string]*model.RefreshToken{}} }

func (s *stubTokens) Store(_ context.Context, t *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.rows[t.TokenHash] = &cp
	return nil
}

func (s *stubTokens) Rotate(_ context.Context, oldHash string, next *model.RefreshToken, now time.Time) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.rows[oldHash]
	switch {
	case !ok:
		return model.RefreshToken{}, repository.ErrTokenNotFound
	case old.Revoked():
		return *old, repository.ErrTokenRevoked
	case old.Expired(now):
		return *old, repository.ErrTokenExpired
	}
	old.RevokedAt = &now
	next.UserID, next.FamilyID = old.UserID, old.FamilyID
	cp := *next
	s.rows[next.TokenHash] = &cp
	return *old, nil
}

func (s *stubTokens) RevokeByHash(_ context.Context, hash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.rows[hash]; ok && t.RevokedAt == nil {
		t.RevokedAt = &now
	}
	return nil
}

func (s *stubTokens) RevokeFamily(_ context.Context, family string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, t := range s.rows {
		if t.FamilyID == family && t.RevokedAt == nil {
			t.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (s *stubTokens) RevokeAllForUser(_ context.Context, userID uint64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.rows {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

// stubReservations guards everything with one mutex, which also stands in
// for the per-vehicle lock.
type stubReservations struct {
	mu   sync.Mutex
	rows map[uint64]model.Reservation
	next uint64
}

func newStubReservations() *stubReservations {
	return &stubReservations{rows: map[uint64]model.Reservation{}}
}

func (s *stubReservations) WithVehicleLock(_ context.Context, _ uint64, fn func(repository.ReservationWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(stubWriter{s})
}

func (s *stubReservations) List(context.Context) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(model.Reservation) bool { return true }), nil
}

func (s *stubReservations) ListByUser(_ context.Context, userID uint64) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(r model.Reservation) bool { return r.UserID == userID }), nil
}

func (s *stubReservations) GetByID(_ context.Context, id uint64) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return model.Reservation{}, repository.ErrNotFound
	}
	return r, nil
}

func (s *stubReservations) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *stubReservations) collect(keep func(model.Reservation) bool) []model.Reservation {
	var out []model.Reservation
	for id := uint64(1); id <= s.next; id++ {
		if r, ok := s.rows[id]; ok && keep(r) {
			out = append(out, r)
		}
	}
	return out
}

type stubWriter struct{ s *stubReservations }

func (w stubWriter) Overlapping(_ context.Context, carID uint64, from, to time.Time, excludeID uint64) ([]model.Reservation, error) {
	return w.s.collect(func(r model.Reservation) bool {
		return r.CarID == carID && r.ID != excludeID && r.OverlapsRange(from, to)
	}), nil
}

func (w stubWriter) Insert(_ context.Context, r *model.Reservation) error {
	w.s.next++
	r.ID = w.s.next
	w.s.rows[r.ID] = *r
	return nil
}

func (w stubWriter) Update(_ context.Context, r model.Reservation) error {
	if _, ok := w.s.rows[r.ID]; !ok {
		return repository.ErrNotFound
	}
	w.s.rows[r.ID] = r
	return nil
}

// stubFleet is a fixed VehicleCatalog.
type stubFleet map[uint64]model.VehicleInfo

func (f stubFleet) Exists(_ context.Context, id uint64) (bool, error) {
	_, ok := f[id]
	return ok, nil
}

func (f stubFleet) GetDisplayInfo(_ context.Context, id uint64) (model.VehicleInfo, error) {
	info, ok := f[id]
	if !ok {
		return model.VehicleInfo{}, repository.ErrNotFound
	}
	return info, nil
}
