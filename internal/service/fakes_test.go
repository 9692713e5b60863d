package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/car-rental/internal/model"
	"github.com/iliyamo/car-rental/internal/queue"
	"github.com/iliyamo/car-rental/internal/repository"
)

type memUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[uint64]model.User{}} }

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if model.NormalizeUsername(x.Username) == model.NormalizeUsername(u.Username) {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	m.byID[u.ID] = *u
	return nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if model.NormalizeUsername(x.Username) == model.NormalizeUsername(username) {
			return x, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) UsernameTaken(_ context.Context, username string, excludeID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, x := range m.byID {
		if id != excludeID && model.NormalizeUsername(x.Username) == model.NormalizeUsername(username) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id uint64, username, passwordHash *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if username != nil {
		u.Username = *username
	}
	if passwordHash != nil {
		u.PasswordHash = *passwordHash
	}
	m.byID[id] = u
	return nil
}

type memTokens struct {
	mu     sync.Mutex
	nextID uint64
	byHash map[string]*model.RefreshToken
}

func newMemTokens() *memTokens { return &memTokens{byHash: map[string]*model.RefreshToken{}} }

func (m *memTokens) store(t *model.RefreshToken) {
	m.nextID++
	t.ID = m.nextID
	cp := *t
	m.byHash[t.TokenHash] = &cp
}

func (m *memTokens) Store(_ context.Context, t *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(t)
	return nil
}

func (m *memTokens) Rotate(_ context.Context, oldHash string, next *model.RefreshToken, now time.Time) (model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.byHash[oldHash]
	if !ok {
		return model.RefreshToken{}, repository.ErrTokenNotFound
	}
	if old.Revoked() {
		return *old, repository.ErrTokenRevoked
	}
	if old.Expired(now) {
		return *old, repository.ErrTokenExpired
	}
	next.UserID, next.FamilyID = old.UserID, old.FamilyID
	m.store(next)
	at, id := now, next.ID
	old.RevokedAt, old.ReplacedBy = &at, &id
	return *old, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byHash[hash]; ok && !t.Revoked() {
		at := now
		t.RevokedAt = &at
	}
	return nil
}

func (m *memTokens) RevokeFamily(_ context.Context, familyID string, now time.Time) (int64, error) {
	return m.revokeWhere(now, func(t *model.RefreshToken) bool { return t.FamilyID == familyID }), nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID uint64, now time.Time) error {
	m.revokeWhere(now, func(t *model.RefreshToken) bool { return t.UserID == userID })
	return nil
}

func (m *memTokens) revokeWhere(now time.Time, match func(*model.RefreshToken) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range m.byHash {
		if match(t) && !t.Revoked() {
			at := now
			t.RevokedAt = &at
			n++
		}
	}
	return n
}

// memReservations serializes writers per car the way the row lock does.
type memReservations struct {
	mu     sync.Mutex
	locks  map[uint64]*sync.Mutex
	cars   map[uint64]bool
	nextID uint64
	rows   map[uint64]model.Reservation
}

func newMemReservations(carIDs ...uint64) *memReservations {
	m := &memReservations{
		locks: map[uint64]*sync.Mutex{},
		cars:  map[uint64]bool{},
		rows:  map[uint64]model.Reservation{},
	}
	for _, id := range carIDs {
		m.cars[id] = true
	}
	return m
}

func (m *memReservations) WithVehicleLock(_ context.Context, carID uint64, fn func(repository.ReservationWriter) error) error {
	m.mu.Lock()
	if !m.cars[carID] {
		m.mu.Unlock()
		return repository.ErrVehicleNotFound
	}
	l, ok := m.locks[carID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[carID] = l
	}
	m.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(memWriter{m})
}

func (m *memReservations) List(context.Context) ([]model.Reservation, error) {
	return m.filter(func(model.Reservation) bool { return true }), nil
}

func (m *memReservations) ListByUser(_ context.Context, userID uint64) ([]model.Reservation, error) {
	return m.filter(func(r model.Reservation) bool { return r.UserID == userID }), nil
}

func (m *memReservations) GetByID(_ context.Context, id uint64) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return model.Reservation{}, repository.ErrNotFound
	}
	return r, nil
}

func (m *memReservations) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memReservations) filter(keep func(model.Reservation) bool) []model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Reservation
	for _, r := range m.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memWriter struct{ m *memReservations }

func (w memWriter) Overlapping(_ context.Context, carID uint64, from, to time.Time, excludeID uint64) ([]model.Reservation, error) {
	return w.m.filter(func(r model.Reservation) bool {
		return r.CarID == carID && r.ID != excludeID && r.OverlapsRange(from, to)
	}), nil
}

func (w memWriter) Insert(_ context.Context, r *model.Reservation) error {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	w.m.nextID++
	r.ID = w.m.nextID
	w.m.rows[r.ID] = *r
	return nil
}

func (w memWriter) Update(_ context.Context, r model.Reservation) error {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	if _, ok := w.m.rows[r.ID]; !ok {
		return repository.ErrNotFound
	}
	w.m.rows[r.ID] = r
	return nil
}

type memClasses struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.CarClass
	inUse  func(id uint64) bool
}

func newMemClasses() *memClasses { return &memClasses{rows: map[uint64]model.CarClass{}} }

func (m *memClasses) List(context.Context) ([]model.CarClass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.CarClass, 0, len(m.rows))
	for _, c := range m.rows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memClasses) GetByID(_ context.Context, id uint64) (model.CarClass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return model.CarClass{}, repository.ErrNotFound
	}
	return c, nil
}

func (m *memClasses) dup(name string, except uint64) bool {
	for id, c := range m.rows {
		if id != except && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func (m *memClasses) Create(_ context.Context, c *model.CarClass) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dup(c.Name, 0) {
		return repository.ErrDuplicate
	}
	m.nextID++
	c.ID = m.nextID
	m.rows[c.ID] = *c
	return nil
}

func (m *memClasses) Update(_ context.Context, c model.CarClass) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[c.ID]; !ok {
		return repository.ErrNotFound
	}
	if m.dup(c.Name, c.ID) {
		return repository.ErrDuplicate
	}
	m.rows[c.ID] = c
	return nil
}

func (m *memClasses) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	if m.inUse != nil && m.inUse(id) {
		return repository.ErrInUse
	}
	delete(m.rows, id)
	return nil
}

type memCars struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Car
	booked map[uint64]bool
}

func newMemCars() *memCars {
	return &memCars{rows: map[uint64]model.Car{}, booked: map[uint64]bool{}}
}

func (m *memCars) all(keep func(model.Car) bool) []model.Car {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Car
	for _, c := range m.rows {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memCars) List(context.Context) ([]model.Car, error) {
	return m.all(func(model.Car) bool { return true }), nil
}

func (m *memCars) ListByClass(_ context.Context, classID uint64) ([]model.Car, error) {
	return m.all(func(c model.Car) bool { return c.CarClassID == classID }), nil
}

func (m *memCars) GetByID(_ context.Context, id uint64) (model.Car, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return model.Car{}, repository.ErrNotFound
	}
	return c, nil
}

func (m *memCars) Exists(_ context.Context, id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok, nil
}

func (m *memCars) dup(plate string, except uint64) bool {
	for id, c := range m.rows {
		if id != except && strings.EqualFold(c.PlateNumber, plate) {
			return true
		}
	}
	return false
}

func (m *memCars) Create(_ context.Context, c *model.Car) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dup(c.PlateNumber, 0) {
		return repository.ErrDuplicate
	}
	m.nextID++
	c.ID = m.nextID
	m.rows[c.ID] = *c
	return nil
}

func (m *memCars) Update(_ context.Context, c model.Car) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[c.ID]; !ok {
		return repository.ErrNotFound
	}
	if m.dup(c.PlateNumber, c.ID) {
		return repository.ErrDuplicate
	}
	m.rows[c.ID] = c
	return nil
}

func (m *memCars) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	if m.booked[id] {
		return repository.ErrInUse
	}
	delete(m.rows, id)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
