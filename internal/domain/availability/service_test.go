package availability

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medpractice/portal/internal/domain/directory"
	"github.com/medpractice/portal/internal/platform/websocket"
)

type mockDoctorStore struct {
	doctors map[uuid.UUID]*directory.DoctorRecord
}

func newMockDoctorStore() *mockDoctorStore {
	return &mockDoctorStore{doctors: make(map[uuid.UUID]*directory.DoctorRecord)}
}

func (m *mockDoctorStore) add(principalID uuid.UUID) *directory.DoctorRecord {
	d := &directory.DoctorRecord{
		ID:                 uuid.New(),
		PrincipalID:        principalID,
		AvailabilityStatus: directory.AvailabilityActive,
	}
	m.doctors[d.ID] = d
	return d
}

func (m *mockDoctorStore) GetByPrincipal(_ context.Context, principalID uuid.UUID) (*directory.DoctorRecord, error) {
	for _, d := range m.doctors {
		if d.PrincipalID == principalID {
			return d, nil
		}
	}
	return nil, directory.ErrDoctorRecordNotFound
}

func (m *mockDoctorStore) GetByID(_ context.Context, id uuid.UUID) (*directory.DoctorRecord, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, directory.ErrDoctorRecordNotFound
	}
	return d, nil
}

func (m *mockDoctorStore) UpdateAvailability(_ context.Context, id uuid.UUID, status directory.AvailabilityStatus) error {
	d, ok := m.doctors[id]
	if !ok {
		return directory.ErrDoctorRecordNotFound
	}
	d.AvailabilityStatus = status
	return nil
}

type mockPublisher struct {
	events []websocket.Event
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e websocket.Event) error {
	m.events = append(m.events, e)
	return m.err
}

func TestSetAvailability(t *testing.T) {
	store := newMockDoctorStore()
	pub := &mockPublisher{}
	svc := NewService(store, pub, zerolog.Nop())

	principal := uuid.New()
	d := store.add(principal)

	updated, err := svc.SetAvailability(context.Background(), principal, directory.AvailabilityAway)
	if err != nil {
		t.Fatalf("SetAvailability: %v", err)
	}
	if updated.AvailabilityStatus != directory.AvailabilityAway {
		t.Errorf("status = %s, want away", updated.AvailabilityStatus)
	}
	if store.doctors[d.ID].AvailabilityStatus != directory.AvailabilityAway {
		t.Error("store not updated")
	}

	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	e := pub.events[0]
	if e.Type != EventChanged || e.Topic != Topic(d.ID) || e.Status != "away" {
		t.Errorf("event = %+v", e)
	}
}

func TestSetAvailability_InvalidStatus(t *testing.T) {
	svc := NewService(newMockDoctorStore(), &mockPublisher{}, zerolog.Nop())

	_, err := svc.SetAvailability(context.Background(), uuid.New(), "busy")
	if !errors.Is(err, directory.ErrInvalidStatus) {
		t.Errorf("got %v, want ErrInvalidStatus", err)
	}
}

func TestSetAvailability_SelfOnly(t *testing.T) {
	store := newMockDoctorStore()
	svc := NewService(store, &mockPublisher{}, zerolog.Nop())
	store.add(uuid.New())

	// A principal without a doctor record of their own cannot set anything,
	// even though other doctor records exist.
	_, err := svc.SetAvailability(context.Background(), uuid.New(), directory.AvailabilityAway)
	if !errors.Is(err, directory.ErrDoctorRecordNotFound) {
		t.Errorf("got %v, want ErrDoctorRecordNotFound", err)
	}
}

func TestSetAvailability_PublishFailureNotSurfaced(t *testing.T) {
	store := newMockDoctorStore()
	pub := &mockPublisher{err: errors.New("hub down")}
	svc := NewService(store, pub, zerolog.Nop())

	principal := uuid.New()
	d := store.add(principal)

	if _, err := svc.SetAvailability(context.Background(), principal, directory.AvailabilityAway); err != nil {
		t.Fatalf("publish failures must not surface: %v", err)
	}
	if store.doctors[d.ID].AvailabilityStatus != directory.AvailabilityAway {
		t.Error("store update lost on publish failure")
	}
}

func TestSnapshot(t *testing.T) {
	store := newMockDoctorStore()
	svc := NewService(store, &mockPublisher{}, zerolog.Nop())
	d := store.add(uuid.New())
	d.AvailabilityStatus = directory.AvailabilityAway

	e, ok := svc.Snapshot(context.Background(), Topic(d.ID))
	if !ok {
		t.Fatal("snapshot not found for valid topic")
	}
	if e.Type != EventSnapshot || e.Status != "away" || e.DoctorID != d.ID.String() {
		t.Errorf("event = %+v", e)
	}
}

func TestSnapshot_BadTopics(t *testing.T) {
	svc := NewService(newMockDoctorStore(), &mockPublisher{}, zerolog.Nop())

	for _, topic := range []string{"", "availability/", "availability/not-a-uuid", "other/" + uuid.NewString(), Topic(uuid.New())} {
		if _, ok := svc.Snapshot(context.Background(), topic); ok {
			t.Errorf("snapshot for %q should not resolve", topic)
		}
	}
}
