package docindex

// EventType names an event published by the job orchestrator.
type EventType string

const (
	EventJobStatusChange EventType = "job-status-change"
	EventJobProgress     EventType = "job-progress"
	EventLibraryChange   EventType = "library-change"
	EventJobListChange   EventType = "job-list-change"
)

// Event is a notification about job state.
type Event struct {
	Type     EventType
	Job      *Job
	Progress *ProgressEvent
}

// EventBus delivers events to subscribers without blocking publishers.
type EventBus interface {
	Publish(e Event)

	// Subscribe returns a channel receiving events of the given types
	// (all types if none given) and a function that ends the subscription.
	Subscribe(types ...EventType) (<-chan Event, func())
}
