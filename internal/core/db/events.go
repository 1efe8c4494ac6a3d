package db

import log "github.com/sirupsen/logrus"

// ------------------------------
// Event System
// ------------------------------
//
// The DB emits typed events as a run progresses. Register listeners to react
// to these changes.
//
// Example usage:
//
//	db.RegisterEventListener(db.OnLinkRecordedEvent, func(event db.Event) error {
//	    ev := event.(db.LinkRecordedEvent)
//	    log.Printf("%s: %s", ev.Link.Host, ev.Link.URL)
//	    return nil
//	})
//
// Event is the common interface for all database events.
type Event interface {
	Kind() EventKind
}

// EventKind represents all the kinds of events that can be emitted by the DB.
type EventKind int

const (
	// OnRunCreatedEvent is emitted when a run is started.
	OnRunCreatedEvent EventKind = iota
	// OnLinkRecordedEvent is emitted when a link is stored for a run.
	OnLinkRecordedEvent
	// OnRunFinishedEvent is emitted when a run completes.
	OnRunFinishedEvent
)

func (k EventKind) String() string {
	switch k {
	case OnRunCreatedEvent:
		return "run_created"
	case OnLinkRecordedEvent:
		return "link_recorded"
	case OnRunFinishedEvent:
		return "run_finished"
	default:
		return "unknown"
	}
}

// RunCreatedEvent is emitted after a run row is inserted.
type RunCreatedEvent struct {
	Run Run
}

func (e RunCreatedEvent) Kind() EventKind { return OnRunCreatedEvent }

// LinkRecordedEvent is emitted after a link is inserted.
type LinkRecordedEvent struct {
	Link Link
}

func (e LinkRecordedEvent) Kind() EventKind { return OnLinkRecordedEvent }

// RunFinishedEvent is emitted after a run is marked finished.
type RunFinishedEvent struct {
	RunID     string
	LinkCount int
}

func (e RunFinishedEvent) Kind() EventKind { return OnRunFinishedEvent }

// EventListener is a callback that handles events of a specific kind.
type EventListener func(event Event) error

// RegisterEventListener adds a listener for a specific event kind.
// Listeners are called synchronously in registration order after the DB operation succeeds.
func (db *DB) RegisterEventListener(eventKind EventKind, listener EventListener) {
	if db.eventListeners == nil {
		db.eventListeners = make(map[EventKind][]EventListener)
	}
	db.eventListeners[eventKind] = append(db.eventListeners[eventKind], listener)
}

// emit dispatches an event to all registered listeners for that event kind.
func (db *DB) emit(event Event) {
	listeners := db.eventListeners[event.Kind()]
	for _, listener := range listeners {
		if err := listener(event); err != nil {
			log.WithFields(log.Fields{"event": event.Kind().String(), "err": err}).Error("Event listener error")
		}
	}
}
