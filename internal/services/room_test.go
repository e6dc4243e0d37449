package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-match-backend/internal/domain"
	"room-match-backend/internal/models"
)

type fakeRoomStore struct {
	mu    sync.Mutex
	rooms map[string]*models.Room

	// afterGet runs after each GetByID, outside the lock. Lets tests slip
	// a racing write between the coordinator's read and its conditional
	// write.
	afterGet func()
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{rooms: make(map[string]*models.Room)}
}

func (f *fakeRoomStore) Create(_ context.Context, room *models.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := *room
	f.rooms[room.ID] = &r
	return nil
}

func (f *fakeRoomStore) GetByID(_ context.Context, id string) (*models.Room, error) {
	f.mu.Lock()
	room, ok := f.rooms[id]
	var copied models.Room
	if ok {
		copied = *room
	}
	f.mu.Unlock()

	if f.afterGet != nil {
		f.afterGet()
	}
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return &copied, nil
}

func (f *fakeRoomStore) ListActive(_ context.Context) ([]models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Room
	for _, r := range f.rooms {
		if r.Status != models.StatusFinished {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRoomStore) UpdateStatus(_ context.Context, roomID string, current, next models.RoomStatus) (*models.Room, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok || room.Status != current {
		return nil, false, nil
	}
	room.Status = next
	room.UpdatedAt = time.Now()
	copied := *room
	return &copied, true, nil
}

func (f *fakeRoomStore) UpdateStatusAsCreator(_ context.Context, roomID, creatorID string, expected, next models.RoomStatus) (*models.Room, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok || room.CreatedBy != creatorID || room.Status != expected {
		return nil, false, nil
	}
	room.Status = next
	room.UpdatedAt = time.Now()
	copied := *room
	return &copied, true, nil
}

func (f *fakeRoomStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[id]; !ok {
		return domain.ErrRoomNotFound
	}
	delete(f.rooms, id)
	return nil
}

type fakeParticipantStore struct {
	mu           sync.Mutex
	participants map[string]models.Participant
	failAdd      error
}

func newFakeParticipantStore() *fakeParticipantStore {
	return &fakeParticipantStore{participants: make(map[string]models.Participant)}
}

func participantKey(roomID, userID string) string { return roomID + "|" + userID }

func (f *fakeParticipantStore) Add(_ context.Context, p *models.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd != nil {
		return f.failAdd
	}
	key := participantKey(p.RoomID, p.UserID)
	if _, ok := f.participants[key]; ok {
		return domain.ErrAlreadyExists
	}
	f.participants[key] = *p
	return nil
}

func (f *fakeParticipantStore) Get(_ context.Context, roomID, userID string) (*models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[participantKey(roomID, userID)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeParticipantStore) ListByRoom(_ context.Context, roomID string) ([]models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Participant
	for _, p := range f.participants {
		if p.RoomID == roomID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeParticipantStore) CountByRoom(ctx context.Context, roomID string) (int, error) {
	list, _ := f.ListByRoom(ctx, roomID)
	return len(list), nil
}

func (f *fakeParticipantStore) Remove(_ context.Context, roomID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.participants, participantKey(roomID, userID))
	return nil
}

func newRoomService() (*RoomService, *fakeRoomStore, *fakeParticipantStore) {
	rooms := newFakeRoomStore()
	participants := newFakeParticipantStore()
	return NewRoomService(rooms, participants), rooms, participants
}

func TestCreateRoomStartsWaitingWithCreatorJoined(t *testing.T) {
	svc, _, participants := newRoomService()
	ctx := context.Background()

	room, err := svc.Create(ctx, "u1", "Friday night", "", nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusWaiting, room.Status)
	assert.Equal(t, "u1", room.CreatedBy)
	assert.Equal(t, "General", room.Category)

	p, err := participants.Get(ctx, room.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, p, "creator auto-joined as first participant")
}

func TestCreateRoomRejectsEmptyName(t *testing.T) {
	svc, _, _ := newRoomService()

	_, err := svc.Create(context.Background(), "u1", "   ", "", nil)

	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "name", ve.Field)
}

func TestCreateRoomCompensatesWhenCreatorJoinFails(t *testing.T) {
	svc, rooms, participants := newRoomService()
	participants.failAdd = fmt.Errorf("insert failed")

	_, err := svc.Create(context.Background(), "u1", "Doomed", "", nil)
	require.Error(t, err)

	assert.Empty(t, rooms.rooms, "room row removed after participant insert failed")
}

func TestLifecycleHappyPath(t *testing.T) {
	svc, _, _ := newRoomService()
	ctx := context.Background()

	room, err := svc.Create(ctx, "u1", "Game", "", nil)
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, "u1", room.ID, models.StatusReady, models.StatusWaiting)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, updated.Status)

	updated, err = svc.UpdateStatus(ctx, "u1", room.ID, models.StatusPlaying, models.StatusReady)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPlaying, updated.Status)
}

func TestUpdateStatusDeniesNonCreator(t *testing.T) {
	svc, _, _ := newRoomService()
	ctx := context.Background()

	room, err := svc.Create(ctx, "u1", "Game", "", nil)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, "u2", room.ID, models.StatusReady, models.StatusWaiting)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	svc, _, _ := newRoomService()
	ctx := context.Background()

	room, err := svc.Create(ctx, "u1", "Game", "", nil)
	require.NoError(t, err)

	// waiting -> playing is not in the table; only waiting -> ready is.
	_, err = svc.UpdateStatus(ctx, "u1", room.ID, models.StatusPlaying, models.StatusWaiting)

	var ite *domain.IllegalTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, models.StatusWaiting, ite.From)
	assert.Equal(t, models.StatusPlaying, ite.To)
}

func TestUpdateStatusStaleExpectationIsConflict(t *testing.T) {
	svc, rooms, _ := newRoomService()
	ctx := context.Background()

	room, err := svc.Create(ctx, "u1", "Game", "", nil)
	require.NoError(t, err)

	// Another client already advanced the room to ready.
	_, ok, err := rooms.UpdateStatus(ctx, room.ID, models.StatusWaiting, models.StatusReady)
	require.NoError(t, err)
	require.True(t, ok)

	// A stale client still expects waiting.
	_, err = svc.UpdateStatus(ctx, "u1", room.ID, models.StatusReady, models.StatusWaiting)

	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, models.StatusWaiting, ce.Expected)
	assert.Equal(t, models.StatusReady, ce.Actual, "conflict reports the actual status")
}

func TestUpdateStatusClassifiesWriteRace(t *testing.T) {
	svc, rooms, _ := newRoomService()
	ctx := context.Background()

	room, err := svc.Create(ctx, "u1", "Game", "", nil)
	require.NoError(t, err)

	// Slip a competing transition in between the coordinator's read and
	// its conditional write: the write affects zero rows and the failure
	// must be classified as a conflict, not a generic error.
	raced := false
	rooms.afterGet = func() {
		if raced {
			return
		}
		raced = true
		_, _, _ = rooms.UpdateStatus(ctx, room.ID, models.StatusWaiting, models.StatusReady)
	}

	_, err = svc.UpdateStatus(ctx, "u1", room.ID, models.StatusReady, models.StatusWaiting)

	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, models.StatusReady, ce.Actual)
}

func TestUpdateStatusSecureClassification(t *testing.T) {
	svc, rooms, _ := newRoomService()
	ctx := context.Background()

	room, err := svc.Create(ctx, "u1", "Game", "", nil)
	require.NoError(t, err)

	t.Run("forbidden", func(t *testing.T) {
		_, err := svc.UpdateStatusSecure(ctx, "u2", room.ID, models.StatusReady, models.StatusWaiting)
		assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	})

	t.Run("conflict reports actual", func(t *testing.T) {
		_, ok, err := rooms.UpdateStatus(ctx, room.ID, models.StatusWaiting, models.StatusReady)
		require.NoError(t, err)
		require.True(t, ok)

		_, err = svc.UpdateStatusSecure(ctx, "u1", room.ID, models.StatusReady, models.StatusWaiting)
		var ce *domain.ConflictError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, models.StatusReady, ce.Actual)
	})

	t.Run("not found wins over everything", func(t *testing.T) {
		require.NoError(t, rooms.Delete(ctx, room.ID))
		_, err := svc.UpdateStatusSecure(ctx, "u2", room.ID, models.StatusReady, models.StatusWaiting)
		assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	})
}

func TestConcurrentSecureUpdatesCommitAtMostOnce(t *testing.T) {
	svc, _, _ := newRoomService()
	ctx := context.Background()

	room, err := svc.Create(ctx, "u1", "Game", "", nil)
	require.NoError(t, err)

	// Two competing requests, both expecting waiting: one legal
	// (-> ready), one illegal from waiting (-> playing). The legal one
	// commits at most once; the other fails with an illegal-transition
	// or conflict error, never a second success.
	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = svc.UpdateStatusSecure(ctx, "u1", room.ID, models.StatusReady, models.StatusWaiting)
	}()
	go func() {
		defer wg.Done()
		_, results[1] = svc.UpdateStatusSecure(ctx, "u1", room.ID, models.StatusPlaying, models.StatusWaiting)
	}()
	wg.Wait()

	assert.NoError(t, results[0], "legal transition succeeds")

	var ite *domain.IllegalTransitionError
	isIllegal := errors.As(results[1], &ite)
	assert.True(t, isIllegal || domain.IsConflict(results[1]),
		"losing request fails with illegal-transition or conflict, got %v", results[1])

	final, err := svc.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, final.Status)
}

func TestConcurrentSecureUpdatesSameTarget(t *testing.T) {
	svc, _, _ := newRoomService()
	ctx := context.Background()

	room, err := svc.Create(ctx, "u1", "Game", "", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.UpdateStatusSecure(ctx, "u1", room.ID, models.StatusReady, models.StatusWaiting)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else {
			assert.True(t, domain.IsConflict(err), "loser sees a conflict, got %v", err)
		}
	}
	assert.Equal(t, 1, successes, "exactly one request commits")
}

func TestJoinSemantics(t *testing.T) {
	svc, rooms, _ := newRoomService()
	ctx := context.Background()

	max := 2
	room, err := svc.Create(ctx, "u1", "Game", "", &max)
	require.NoError(t, err)

	// Re-entry is idempotent.
	p, err := svc.Join(ctx, room.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)

	// A new participant can join while waiting.
	_, err = svc.Join(ctx, room.ID, "u2")
	require.NoError(t, err)

	// Capacity is enforced.
	_, err = svc.Join(ctx, room.ID, "u3")
	assert.ErrorIs(t, err, domain.ErrRoomFull)

	// Non-members cannot join once the room has advanced; the creator
	// still can re-enter.
	_, ok, err := rooms.UpdateStatus(ctx, room.ID, models.StatusWaiting, models.StatusReady)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.Leave(ctx, room.ID, "u2"))
	_, err = svc.Join(ctx, room.ID, "u3")
	assert.ErrorIs(t, err, domain.ErrRoomNotJoinable)

	require.NoError(t, svc.Leave(ctx, room.ID, "u1"))
	_, err = svc.Join(ctx, room.ID, "u1")
	assert.NoError(t, err, "creator may rejoin a ready room")
}

func TestJoinUnknownRoom(t *testing.T) {
	svc, _, _ := newRoomService()

	_, err := svc.Join(context.Background(), "missing", "u1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}
