package events

import (
	"encoding/json"
	"testing"
)

type recordingSink struct {
	events []ProgressEvent
}

func (r *recordingSink) Publish(ev ProgressEvent) {
	r.events = append(r.events, ev)
}

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker(4)

	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	if got := b.Subscribers(); got != 2 {
		t.Fatalf("Subscribers = %d, want 2", got)
	}

	b.Publish(ProgressEvent{Progress: 50})

	for i, ch := range []<-chan ProgressEvent{ch1, ch2} {
		ev := <-ch
		if ev.Progress != 50 {
			t.Errorf("subscriber %d got %+v", i, ev)
		}
	}

	cancel1()
	cancel1()
	if _, ok := <-ch1; ok {
		t.Error("canceled subscription channel still open")
	}
	if got := b.Subscribers(); got != 1 {
		t.Errorf("Subscribers after cancel = %d, want 1", got)
	}
}

func TestBrokerSlowSubscriberKeepsNewest(t *testing.T) {
	b := NewBroker(2)
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 1; i <= 5; i++ {
		b.Publish(ProgressEvent{Progress: float64(i * 20)})
	}

	first := <-ch
	second := <-ch
	if first.Progress != 80 || second.Progress != 100 {
		t.Errorf("got %v then %v, want 80 then 100", first.Progress, second.Progress)
	}
}

func TestBrokerPublishWithoutSubscribers(t *testing.T) {
	b := NewBroker(0)
	b.Publish(ProgressEvent{Finished: true})
}

func TestMultiSink(t *testing.T) {
	a, c := &recordingSink{}, &recordingSink{}
	m := MultiSink{a, nil, c}

	m.Publish(ProgressEvent{Progress: 10})
	m.Publish(ProgressEvent{Finished: true, Success: true, Progress: 100})

	for _, s := range []*recordingSink{a, c} {
		if len(s.events) != 2 || !s.events[1].Finished {
			t.Errorf("sink got %+v", s.events)
		}
	}
}

func TestProgressEventJSON(t *testing.T) {
	b, err := json.Marshal(ProgressEvent{Progress: 42.5, Finished: true, ErrorMessage: "boom"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"progress":42.5,"finished":true,"success":false,"errorMessage":"boom"}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}

	b, _ = json.Marshal(ProgressEvent{Progress: 100, Finished: true, Success: true})
	if string(b) != `{"progress":100,"finished":true,"success":true}` {
		t.Errorf("json = %s", b)
	}
}

func TestNewNATSSinkUnreachable(t *testing.T) {
	if _, err := NewNATSSink("nats://127.0.0.1:1", ""); err == nil {
		t.Error("Expected connection error for unreachable server")
	}
}
