package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/StudyRoom/internal/domain"
	"github.com/qrave1/StudyRoom/internal/domain/events"
	"github.com/qrave1/StudyRoom/internal/domain/input"
	"github.com/qrave1/StudyRoom/internal/domain/models"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/postgres/repository"
)

type fakeRoomRepo struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]models.Room
	err   error
}

func newFakeRoomRepo(rooms ...*models.Room) *fakeRoomRepo {
	r := &fakeRoomRepo{rooms: make(map[uuid.UUID]models.Room)}
	for _, room := range rooms {
		r.rooms[room.ID] = *room
	}

	return r
}

func (r *fakeRoomRepo) Create(_ context.Context, room *models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}

	r.rooms[room.ID] = *room

	return nil
}

func (r *fakeRoomRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}

	room, ok := r.rooms[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return &room, nil
}

func (r *fakeRoomRepo) List(_ context.Context, _ input.ListRoomsFilter) ([]*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make([]*models.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		room := room
		rooms = append(rooms, &room)
	}

	return rooms, nil
}

func (r *fakeRoomRepo) Update(_ context.Context, room *models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}

	r.rooms[room.ID] = *room

	return nil
}

type membershipKey struct {
	roomID uuid.UUID
	userID uuid.UUID
}

type fakeMembershipRepo struct {
	mu      sync.Mutex
	members map[membershipKey]models.Membership
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{members: make(map[membershipKey]models.Membership)}
}

func (r *fakeMembershipRepo) Upsert(_ context.Context, m *models.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members[membershipKey{m.RoomID, m.UserID}] = *m

	return nil
}

func (r *fakeMembershipRepo) Remove(_ context.Context, roomID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.members, membershipKey{roomID, userID})

	return nil
}

func (r *fakeMembershipRepo) IsMember(_ context.Context, roomID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.members[membershipKey{roomID, userID}]

	return ok, nil
}

func (r *fakeMembershipRepo) ListByRoom(_ context.Context, roomID uuid.UUID) ([]models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Membership
	for k, m := range r.members {
		if k.roomID == roomID {
			out = append(out, m)
		}
	}

	return out, nil
}

type fakeJoinRequestRepo struct {
	mu    sync.Mutex
	reqs  []*models.JoinRequest
	byID  map[uuid.UUID]*models.JoinRequest
	saves int
}

func newFakeJoinRequestRepo() *fakeJoinRequestRepo {
	return &fakeJoinRequestRepo{byID: make(map[uuid.UUID]*models.JoinRequest)}
}

func (r *fakeJoinRequestRepo) Create(_ context.Context, req *models.JoinRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.reqs {
		if existing.RoomID == req.RoomID && existing.RequesterID == req.RequesterID && existing.Status == models.JoinRequestPending {
			return domain.ErrAlreadyPending
		}
	}

	stored := *req
	r.reqs = append(r.reqs, &stored)
	r.byID[req.ID] = &stored

	return nil
}

func (r *fakeJoinRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*models.JoinRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	out := *req

	return &out, nil
}

func (r *fakeJoinRequestRepo) Latest(_ context.Context, roomID, requesterID uuid.UUID) (*models.JoinRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.reqs) - 1; i >= 0; i-- {
		req := r.reqs[i]
		if req.RoomID == roomID && req.RequesterID == requesterID {
			out := *req
			return &out, nil
		}
	}

	return nil, domain.ErrNotFound
}

func (r *fakeJoinRequestRepo) ListPending(_ context.Context, roomID uuid.UUID) ([]models.JoinRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.JoinRequest
	for _, req := range r.reqs {
		if req.RoomID == roomID && req.Status == models.JoinRequestPending {
			out = append(out, *req)
		}
	}

	return out, nil
}

func (r *fakeJoinRequestRepo) UpdateStatus(_ context.Context, req *models.JoinRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[req.ID]
	if !ok {
		return domain.ErrNotFound
	}

	stored.Status = req.Status
	stored.DecidedAt = req.DecidedAt
	r.saves++

	return nil
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	seq       int64
	messages  []models.Message
	commitErr error
}

func (r *fakeMessageRepo) Append(_ context.Context, msg *models.Message, deliver repository.DeliverFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg.Seq = r.seq + 1

	if err := deliver(msg); err != nil {
		return err
	}

	if r.commitErr != nil {
		return r.commitErr
	}

	r.seq = msg.Seq
	r.messages = append(r.messages, *msg)

	return nil
}

func (r *fakeMessageRepo) History(_ context.Context, roomID uuid.UUID, limit int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Message
	for _, m := range r.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}

	return out, nil
}

type fakeTimerRepo struct {
	mu     sync.Mutex
	states map[uuid.UUID]models.TimerState
}

func newFakeTimerRepo() *fakeTimerRepo {
	return &fakeTimerRepo{states: make(map[uuid.UUID]models.TimerState)}
}

func (r *fakeTimerRepo) Get(_ context.Context, roomID uuid.UUID) (*models.TimerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[roomID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return state.Clone(), nil
}

func (r *fakeTimerRepo) Save(_ context.Context, state *models.TimerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[state.RoomID] = *state.Clone()

	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.Session
	closes   int

	// flushed - значения, пришедшие во Flush и Close, до ограничения
	flushed []int64

	totals    []models.LeaderboardRow
	totalsErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*models.Session)}
}

func (r *fakeSessionRepo) Open(_ context.Context, s *models.Session) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var closed []uuid.UUID
	for id, existing := range r.sessions {
		if existing.UserID == s.UserID && existing.EndedAt == nil {
			at := s.StartedAt
			existing.EndedAt = &at
			closed = append(closed, id)
		}
	}

	stored := *s
	r.sessions[s.ID] = &stored

	return closed, nil
}

func (r *fakeSessionRepo) Flush(_ context.Context, id uuid.UUID, accumulated int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flushed = append(r.flushed, accumulated)

	s, ok := r.sessions[id]
	if !ok || s.EndedAt != nil {
		return false, nil
	}

	s.AccumulatedSeconds = models.ClampSeconds(accumulated, s.StartedAt, at)

	return true, nil
}

func (r *fakeSessionRepo) Close(_ context.Context, id uuid.UUID, accumulated int64, endedAt time.Time, note *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closes++
	r.flushed = append(r.flushed, accumulated)

	s, ok := r.sessions[id]
	if !ok || s.EndedAt != nil {
		return false, nil
	}

	s.AccumulatedSeconds = models.ClampSeconds(accumulated, s.StartedAt, endedAt)
	s.EndedAt = &endedAt
	s.Note = note

	return true, nil
}

func (r *fakeSessionRepo) DailyTotals(_ context.Context, _ uuid.UUID, _, _ time.Time) ([]models.LeaderboardRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.totalsErr != nil {
		return nil, r.totalsErr
	}

	return append([]models.LeaderboardRow(nil), r.totals...), nil
}

func (r *fakeSessionRepo) openFor(userID uuid.UUID) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []uuid.UUID
	for id, s := range r.sessions {
		if s.UserID == userID && s.EndedAt == nil {
			ids = append(ids, id)
		}
	}

	return ids
}

func (r *fakeSessionRepo) get(id uuid.UUID) models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	return *r.sessions[id]
}

type published struct {
	roomID    uuid.UUID
	connID    uuid.UUID
	except    uuid.UUID
	ephemeral bool
	env       events.Envelope
}

// fakePublisher записывает события; failTypes роняет публикацию выбранных типов
type fakePublisher struct {
	mu        sync.Mutex
	events    []published
	failTypes map[string]error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{failTypes: make(map[string]error)}
}

func (p *fakePublisher) failOn(eventType string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failTypes[eventType] = err
}

func (p *fakePublisher) record(ev published) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err, ok := p.failTypes[ev.env.Type]; ok {
		return err
	}

	p.events = append(p.events, ev)

	return nil
}

func (p *fakePublisher) Publish(_ context.Context, roomID uuid.UUID, env events.Envelope) error {
	return p.record(published{roomID: roomID, env: env})
}

func (p *fakePublisher) PublishExcept(_ context.Context, roomID, exceptConnID uuid.UUID, env events.Envelope) error {
	return p.record(published{roomID: roomID, except: exceptConnID, env: env})
}

func (p *fakePublisher) PublishEphemeral(_ context.Context, roomID uuid.UUID, env events.Envelope) error {
	return p.record(published{roomID: roomID, ephemeral: true, env: env})
}

func (p *fakePublisher) SendTo(_ context.Context, connID uuid.UUID, env events.Envelope) error {
	return p.record(published{connID: connID, env: env})
}

func (p *fakePublisher) ofType(eventType string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []published
	for _, ev := range p.events {
		if ev.env.Type == eventType {
			out = append(out, ev)
		}
	}

	return out
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.env.Type)
	}

	return out
}

func newUser(name string) models.User {
	return models.User{ID: uuid.New(), Profile: models.Profile{Username: name}}
}

func newTestRoom(host models.User, approval bool) *models.Room {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	return &models.Room{
		ID:               uuid.New(),
		HostID:           host.ID,
		Name:             "Linear algebra",
		Subject:          "math",
		Difficulty:       models.DifficultyMedium,
		ApprovalRequired: approval,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
