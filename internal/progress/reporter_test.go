package progress

import (
	"testing"
	"time"
)

func TestReporterDeliversToAllSubscribers(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	reporter := NewReporter(WithClock(func() time.Time { return base }))

	first, cancelFirst := reporter.Subscribe()
	second, cancelSecond := reporter.Subscribe()
	defer cancelFirst()
	defer cancelSecond()

	reporter.Publish(Event{Stage: StageEpisode, Message: "Writing episode 2 of 5...", EpisodeIndex: 2})

	for name, ch := range map[string]<-chan Event{"first": first, "second": second} {
		select {
		case event := <-ch:
			if event.Stage != StageEpisode {
				t.Fatalf("%s subscriber: unexpected stage %q", name, event.Stage)
			}
			if event.EpisodeIndex != 2 {
				t.Fatalf("%s subscriber: unexpected episode index %d", name, event.EpisodeIndex)
			}
			if !event.At.Equal(base) {
				t.Fatalf("%s subscriber: unexpected timestamp %v", name, event.At)
			}
		default:
			t.Fatalf("%s subscriber received no event", name)
		}
	}
}

func TestReporterPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	reporter := NewReporter()
	_, cancel := reporter.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			reporter.Publishf(StageImages, "Generating images...")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a subscriber that never drains")
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	reporter := NewReporter()
	ch, cancel := reporter.Subscribe()
	cancel()
	if _, open := <-ch; open {
		t.Fatal("expected closed channel after cancel")
	}
	// Publishing after cancel must not panic on the closed channel.
	reporter.Publishf(StageOutline, "Creating story outline...")
	cancel()
}

func TestStageLabel(t *testing.T) {
	if got := StageStoryboard.Label(); got != "Storyboard" {
		t.Fatalf("unexpected label %q", got)
	}
}
