// Package availability broadcasts doctor active/away status changes. The
// stored DoctorRecord value stays authoritative; the push channel is
// best-effort and consumers re-read on reconnect via the subscribe snapshot.
package availability

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medpractice/portal/internal/domain/directory"
	"github.com/medpractice/portal/internal/platform/websocket"
)

const (
	topicPrefix = "availability/"

	EventChanged  = "availability.changed"
	EventSnapshot = "availability.snapshot"
)

// Topic returns the subscription topic for one doctor record.
func Topic(doctorID uuid.UUID) string {
	return topicPrefix + doctorID.String()
}

// DoctorStore is the slice of the doctor repository the service needs.
type DoctorStore interface {
	GetByPrincipal(ctx context.Context, principalID uuid.UUID) (*directory.DoctorRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*directory.DoctorRecord, error)
	UpdateAvailability(ctx context.Context, id uuid.UUID, status directory.AvailabilityStatus) error
}

type Service struct {
	doctors   DoctorStore
	publisher websocket.EventPublisher
	log       zerolog.Logger
}

func NewService(doctors DoctorStore, publisher websocket.EventPublisher, log zerolog.Logger) *Service {
	return &Service{doctors: doctors, publisher: publisher, log: log}
}

// SetAvailability updates the acting doctor's own status and broadcasts the
// change. Only the doctor may change it; there is no staff override. The
// broadcast is best-effort: a publish failure is logged, never surfaced,
// because the store already holds the truth.
func (s *Service) SetAvailability(ctx context.Context, actor uuid.UUID, status directory.AvailabilityStatus) (*directory.DoctorRecord, error) {
	if !status.Valid() {
		return nil, directory.ErrInvalidStatus
	}

	d, err := s.doctors.GetByPrincipal(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := s.doctors.UpdateAvailability(ctx, d.ID, status); err != nil {
		return nil, err
	}
	d.AvailabilityStatus = status

	event := websocket.Event{
		Type:      EventChanged,
		Topic:     Topic(d.ID),
		DoctorID:  d.ID.String(),
		Status:    string(status),
		Timestamp: time.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("doctor_id", d.ID.String()).Msg("availability broadcast failed")
	}

	return d, nil
}

// Snapshot implements websocket.SnapshotFunc: a new subscriber immediately
// receives the stored status for the topic's doctor.
func (s *Service) Snapshot(ctx context.Context, topic string) (websocket.Event, bool) {
	raw, ok := strings.CutPrefix(topic, topicPrefix)
	if !ok {
		return websocket.Event{}, false
	}
	doctorID, err := uuid.Parse(raw)
	if err != nil {
		return websocket.Event{}, false
	}

	d, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return websocket.Event{}, false
	}

	return websocket.Event{
		Type:      EventSnapshot,
		Topic:     topic,
		DoctorID:  d.ID.String(),
		Status:    string(d.AvailabilityStatus),
		Timestamp: time.Now(),
	}, true
}
