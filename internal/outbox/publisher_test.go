package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"garagebook/internal/domain"
	"garagebook/internal/store"
	"garagebook/internal/store/memory"
)

type fakeWriter struct {
	writeFn func(ctx context.Context, msgs ...kafka.Message) error
}

func (f fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.writeFn == nil {
		panic("WriteMessages not configured")
	}
	return f.writeFn(ctx, msgs...)
}

func seedEvents(t *testing.T, st *memory.Store, n int) {
	t.Helper()
	err := st.InScheduleTransaction(context.Background(), "seed", func(ctx context.Context, tx store.ScheduleTx) error {
		for i := range n {
			ev, err := domain.NewAppointmentEvent(domain.EventAppointmentCreated, domain.Appointment{ID: int64(100 + i)}, time.Now())
			if err != nil {
				return err
			}
			if err := tx.AppendOutbox(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed outbox: %v", err)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishOnce_SendsBatchAndMarksPublished(t *testing.T) {
	st := memory.New()
	seedEvents(t, st, 3)

	var sent []kafka.Message
	p := NewPublisher(st, fakeWriter{writeFn: func(ctx context.Context, msgs ...kafka.Message) error {
		sent = append(sent, msgs...)
		return nil
	}}, discardLogger(), Config{TopicPrefix: "garagebook.", BatchSize: 2})

	n, err := p.PublishOnce(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("PublishOnce = %d, %v; want 2, nil", n, err)
	}
	if sent[0].Topic != "garagebook.appointment.created" || string(sent[0].Key) != "100" {
		t.Fatalf("unexpected message topic=%q key=%q", sent[0].Topic, sent[0].Key)
	}
	var eventType string
	for _, h := range sent[0].Headers {
		if h.Key == "event_type" {
			eventType = string(h.Value)
		}
	}
	if eventType != domain.EventAppointmentCreated {
		t.Fatalf("event_type header = %q", eventType)
	}

	n, err = p.PublishOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("second PublishOnce = %d, %v; want 1, nil", n, err)
	}
	n, err = p.PublishOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("third PublishOnce = %d, %v; want 0, nil", n, err)
	}
	for _, ev := range st.Events() {
		if ev.PublishedAt == nil {
			t.Fatalf("event %d left unpublished", ev.ID)
		}
	}
}

func TestPublishOnce_WriteFailureKeepsEventsPending(t *testing.T) {
	st := memory.New()
	seedEvents(t, st, 2)
	boom := errors.New("broker unavailable")

	p := NewPublisher(st, fakeWriter{writeFn: func(ctx context.Context, msgs ...kafka.Message) error {
		return boom
	}}, discardLogger(), Config{})

	if _, err := p.PublishOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	for _, ev := range st.Events() {
		if ev.PublishedAt != nil {
			t.Fatalf("event %d marked published after a failed write", ev.ID)
		}
	}
}

func TestRun_DrainsUntilCancelled(t *testing.T) {
	st := memory.New()
	seedEvents(t, st, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPublisher(st, fakeWriter{writeFn: func(ctx context.Context, msgs ...kafka.Message) error {
		return nil
	}}, discardLogger(), Config{PollEvery: 5 * time.Millisecond, BatchSize: 2})

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		pending := 0
		for _, ev := range st.Events() {
			if ev.PublishedAt == nil {
				pending++
			}
		}
		if pending == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("%d events still pending", pending)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	want := []string{"kafka-1:9092", "kafka-2:9092"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitBrokers = %v, want %v", got, want)
	}
	if SplitBrokers("") != nil {
		t.Fatalf("empty input must yield nil")
	}
}
