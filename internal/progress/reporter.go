package progress

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"storyforge/internal/logging"
)

// Stage identifies the pipeline phase an event belongs to.
type Stage string

const (
	StageOutline     Stage = "outline"
	StageEpisode     Stage = "episode"
	StageSEO         Stage = "seo"
	StageScenes      Stage = "scenes"
	StageStoryboard  Stage = "storyboard"
	StageImages      Stage = "images"
	StageNarration   Stage = "narration"
	StageVideo       Stage = "video"
	StageSlideshow   Stage = "slideshow"
	StagePersistence Stage = "persistence"
)

var titleCaser = cases.Title(language.English)

// Label renders the stage as a display heading.
func (s Stage) Label() string {
	return titleCaser.String(string(s))
}

// Event is one unit of progress. Attempt is zero for non-retry updates and
// carries the dispatch ordinal when a retry notice is published.
type Event struct {
	Stage        Stage
	Message      string
	Attempt      int
	EpisodeIndex int
	StoryID      string
	At           time.Time
}

// Reporter fans events out to subscribers. Publishing never blocks: a
// subscriber that falls behind loses events rather than stalling the
// pipeline.
type Reporter struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	clock  func() time.Time
	logger *slog.Logger
}

// Option customizes a Reporter.
type Option func(*Reporter)

// WithClock overrides event timestamping (used in tests).
func WithClock(clock func() time.Time) Option {
	return func(r *Reporter) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger mirrors every published event to the given logger at info level.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// NewReporter constructs a Reporter with no subscribers.
func NewReporter(opts ...Option) *Reporter {
	r := &Reporter{
		subs:  make(map[int]chan Event),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const subscriberBuffer = 64

// Subscribe registers a listener and returns its event channel plus a cancel
// function. Cancel closes the channel and releases the slot.
func (r *Reporter) Subscribe() (<-chan Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	ch := make(chan Event, subscriberBuffer)
	r.subs[id] = ch

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if sub, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking.
func (r *Reporter) Publish(event Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.At.IsZero() {
		event.At = r.clock()
	}
	if r.logger != nil {
		attrs := []logging.Attr{
			logging.String(logging.FieldStage, string(event.Stage)),
		}
		if event.Attempt > 0 {
			attrs = append(attrs, logging.Int(logging.FieldAttempt, event.Attempt))
		}
		if event.StoryID != "" {
			attrs = append(attrs, logging.String(logging.FieldStoryID, event.StoryID))
		}
		r.logger.Info(event.Message, logging.Args(attrs...)...)
	}
	for _, sub := range r.subs {
		select {
		case sub <- event:
		default:
		}
	}
}

// Publishf is shorthand for publishing a stage message without retry context.
func (r *Reporter) Publishf(stage Stage, message string) {
	r.Publish(Event{Stage: stage, Message: message})
}
