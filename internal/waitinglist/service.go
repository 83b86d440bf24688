package waitinglist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tickethub/internal/kafka"
	"tickethub/internal/logger"
	"tickethub/internal/models"
	"tickethub/internal/monitoring"
	wldb "tickethub/internal/waitinglist/db"
)

var (
	ErrAlreadyJoined  = errors.New("already in waiting list for this event")
	ErrEventCancelled = errors.New("event is no longer active")
)

type DBLayer interface {
	InsertEntry(ctx context.Context, entry models.WaitingListEntry) error
	GetEntryByID(ctx context.Context, id string) (*models.WaitingListEntry, error)
	FindActiveEntry(ctx context.Context, eventID, userID string) (*models.WaitingListEntry, error)
	ExpireIfOffered(ctx context.Context, id string) error
	OfferIfWaiting(ctx context.Context, id string, expiresAt time.Time) error
	OldestWaiting(ctx context.Context, eventID string) (*models.WaitingListEntry, error)
	StaleOffers(ctx context.Context, now time.Time) ([]models.WaitingListEntry, error)
	DeleteByEvent(ctx context.Context, eventID string) ([]string, error)
	GetEntriesByUser(ctx context.Context, userID string) ([]models.WaitingListEntry, error)
	CountPurchased(ctx context.Context, eventID string) (int, error)
	CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error)
}

type OfferTimers interface {
	Arm(ctx context.Context, entryID string, ttl time.Duration) error
	Disarm(ctx context.Context, entryID string) error
}

type EventGetter interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
}

type KafkaPublisher interface {
	PublishJSON(topic, key string, payload interface{}) error
}

// Service is the waiting-list allocator: it admits joiners either to a
// timed offer or to the FIFO queue, expires lapsed offers, and promotes
// the queue head whenever capacity frees up.
type Service struct {
	DB            DBLayer
	Timers        OfferTimers
	Events        EventGetter
	Kafka         KafkaPublisher
	Logger        *logger.Logger
	OfferDuration time.Duration
}

func NewService(db DBLayer, timers OfferTimers, events EventGetter, kafkaProducer KafkaPublisher, log *logger.Logger, offerDuration time.Duration) *Service {
	return &Service{
		DB:            db,
		Timers:        timers,
		Events:        events,
		Kafka:         kafkaProducer,
		Logger:        log,
		OfferDuration: offerDuration,
	}
}

// remaining computes free capacity: total − purchased − unexpired offers.
func (s *Service) remaining(ctx context.Context, event *models.Event, now time.Time) (int, error) {
	purchased, err := s.DB.CountPurchased(ctx, event.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to count purchased tickets: %w", err)
	}
	offers, err := s.DB.CountActiveOffers(ctx, event.ID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to count active offers: %w", err)
	}
	return event.TotalTickets - (purchased + offers), nil
}

// Join admits a user to the event's waiting list. With capacity remaining
// the user gets a timed offer; otherwise they queue FIFO. At most one
// non-expired entry per (user, event).
func (s *Service) Join(ctx context.Context, eventID, userID string) (*models.JoinResult, error) {
	existing, err := s.DB.FindActiveEntry(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing entry: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyJoined
	}

	event, err := s.Events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.IsCancelled {
		return nil, ErrEventCancelled
	}

	now := time.Now()
	free, err := s.remaining(ctx, event, now)
	if err != nil {
		return nil, err
	}

	entry := models.WaitingListEntry{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    userID,
		CreatedAt: now,
	}

	if free > 0 {
		entry.Status = models.WaitingListStatusOffered
		entry.OfferExpiresAt = now.Add(s.OfferDuration)
	} else {
		entry.Status = models.WaitingListStatusWaiting
	}

	if err := s.DB.InsertEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to insert waiting list entry: %w", err)
	}

	result := &models.JoinResult{
		Success: true,
		EntryID: entry.ID,
		Status:  entry.Status,
	}

	if entry.Status == models.WaitingListStatusOffered {
		if err := s.Timers.Arm(ctx, entry.ID, s.OfferDuration); err != nil {
			// The sweep fallback will still expire the offer.
			s.Logger.Error("WAITLIST", fmt.Sprintf("Failed to arm offer timer for entry %s: %v", entry.ID, err))
		}
		monitoring.OffersGranted.WithLabelValues(eventID, "join").Inc()
		result.Message = fmt.Sprintf("Ticket offered - you have %d minutes to purchase", int(s.OfferDuration.Minutes()))

		if err := s.Kafka.PublishJSON(kafka.TopicWaitingListOffered, entry.ID,
			kafka.NewDomainEvent("waitinglist.offered", eventID, userID, entry)); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish offer event: %v", err))
		}
	} else {
		result.Message = "Added to waiting list - you'll be notified when a ticket becomes available"
	}

	s.Logger.Info("WAITLIST", fmt.Sprintf("User %s joined event %s with status %s", userID, eventID, entry.Status))
	return result, nil
}

// ExpireOffer marks a lapsed offer expired and promotes the queue head.
// Invoked by the Redis timer and by the sweep; both may race the purchase
// path, so the transition is guarded and a conflict is not an error.
func (s *Service) ExpireOffer(ctx context.Context, entryID string) error {
	entry, err := s.DB.GetEntryByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, wldb.ErrNotFound) {
			return nil // purged with the event
		}
		return err
	}

	if err := s.DB.ExpireIfOffered(ctx, entryID); err != nil {
		if errors.Is(err, wldb.ErrStatusConflict) {
			s.Logger.Debug("WAITLIST", fmt.Sprintf("Entry %s no longer offered, skipping expiry", entryID))
			return nil
		}
		return fmt.Errorf("failed to expire offer %s: %w", entryID, err)
	}

	monitoring.OffersExpired.WithLabelValues(entry.EventID).Inc()
	s.Logger.Info("WAITLIST", fmt.Sprintf("Offer %s expired for event %s", entryID, entry.EventID))

	if err := s.Kafka.PublishJSON(kafka.TopicWaitingListExpired, entryID,
		kafka.NewDomainEvent("waitinglist.expired", entry.EventID, entry.UserID, nil)); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish expiry event: %v", err))
	}

	return s.PromoteNext(ctx, entry.EventID)
}

// PromoteNext grants a fresh offer to the oldest waiting entry if capacity
// is free. Called after offer expiry, offer release and refunds.
func (s *Service) PromoteNext(ctx context.Context, eventID string) error {
	event, err := s.Events.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.IsCancelled {
		return nil
	}

	now := time.Now()
	free, err := s.remaining(ctx, event, now)
	if err != nil {
		return err
	}

	for free > 0 {
		head, err := s.DB.OldestWaiting(ctx, eventID)
		if err != nil {
			return err
		}
		if head == nil {
			return nil
		}

		expiresAt := now.Add(s.OfferDuration)
		if err := s.DB.OfferIfWaiting(ctx, head.ID, expiresAt); err != nil {
			if errors.Is(err, wldb.ErrStatusConflict) {
				continue // raced with another promoter; retry with next head
			}
			return fmt.Errorf("failed to promote entry %s: %w", head.ID, err)
		}

		if err := s.Timers.Arm(ctx, head.ID, s.OfferDuration); err != nil {
			s.Logger.Error("WAITLIST", fmt.Sprintf("Failed to arm offer timer for promoted entry %s: %v", head.ID, err))
		}

		monitoring.OffersGranted.WithLabelValues(eventID, "promotion").Inc()
		s.Logger.Info("WAITLIST", fmt.Sprintf("Promoted entry %s (user %s) to offered for event %s", head.ID, head.UserID, eventID))

		if err := s.Kafka.PublishJSON(kafka.TopicWaitingListOffered, head.ID,
			kafka.NewDomainEvent("waitinglist.offered", eventID, head.UserID, nil)); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish promotion event: %v", err))
		}

		free--
	}
	return nil
}

// ReleaseOffer lets a user give up an offer early, freeing the slot for
// the next person in line.
func (s *Service) ReleaseOffer(ctx context.Context, entryID, userID string) error {
	entry, err := s.DB.GetEntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.UserID != userID {
		return errors.New("waiting list entry does not belong to this user")
	}

	if err := s.DB.ExpireIfOffered(ctx, entryID); err != nil {
		if errors.Is(err, wldb.ErrStatusConflict) {
			return errors.New("entry does not hold an active offer")
		}
		return err
	}

	if err := s.Timers.Disarm(ctx, entryID); err != nil {
		s.Logger.Error("WAITLIST", fmt.Sprintf("Failed to disarm timer for entry %s: %v", entryID, err))
	}

	return s.PromoteNext(ctx, entry.EventID)
}

// PurgeEvent drops the event's queue and disarms outstanding timers.
// Used by event cancellation.
func (s *Service) PurgeEvent(ctx context.Context, eventID string) error {
	offeredIDs, err := s.DB.DeleteByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to purge waiting list for event %s: %w", eventID, err)
	}
	for _, id := range offeredIDs {
		if err := s.Timers.Disarm(ctx, id); err != nil {
			s.Logger.Error("WAITLIST", fmt.Sprintf("Failed to disarm timer for entry %s: %v", id, err))
		}
	}
	return nil
}

// UserEntries returns the user's waiting-list history, newest first.
func (s *Service) UserEntries(ctx context.Context, userID string) ([]models.WaitingListEntry, error) {
	return s.DB.GetEntriesByUser(ctx, userID)
}

// SweepExpired expires any offered entry whose instant has passed. Fallback
// for lost Redis notifications; runs on a ticker from main.
func (s *Service) SweepExpired(ctx context.Context) {
	stale, err := s.DB.StaleOffers(ctx, time.Now())
	if err != nil {
		s.Logger.Error("WAITLIST", fmt.Sprintf("Sweep failed to list stale offers: %v", err))
		return
	}
	for _, entry := range stale {
		if err := s.ExpireOffer(ctx, entry.ID); err != nil {
			s.Logger.Error("WAITLIST", fmt.Sprintf("Sweep failed to expire entry %s: %v", entry.ID, err))
		}
	}
}
