package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"petnotify/internal/model"
	logx "petnotify/pkg/logx"
)

func sample() model.Notification {
	return model.Notification{
		ID:          "n1",
		RecipientID: 7,
		Category:    model.CategoryMedical,
		Title:       "New event: Vaccine",
		Message:     "body",
		Target:      model.TargetRef{Type: model.TargetPetEvent, ID: 3},
		Metadata:    model.Metadata{model.MetaLink: "/pets/1/events/3", "pet_id": 1},
		CreatedAt:   time.Date(2025, 1, 2, 15, 4, 0, 0, time.UTC),
	}
}

func TestHubFanout(t *testing.T) {
	t.Parallel()
	h := NewHub(4)
	a, unsubA := h.Subscribe(Topic(7))
	b, unsubB := h.Subscribe(Topic(7))
	other, unsubO := h.Subscribe(Topic(8))
	defer unsubA()
	defer unsubB()
	defer unsubO()

	if err := h.Publish(context.Background(), Topic(7), Message{Event: EventNotification, Data: []byte("x")}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	for _, ch := range []<-chan Message{a, b} {
		select {
		case m := <-ch:
			if m.Topic != "user:7" || string(m.Data) != "x" || m.Time.IsZero() {
				t.Fatalf("unexpected frame: %+v", m)
			}
		default:
			t.Fatal("subscriber of user:7 got nothing")
		}
	}
	select {
	case m := <-other:
		t.Fatalf("user:8 received %+v", m)
	default:
	}
}

func TestHubSlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	h := NewHub(1)
	_, unsub := h.Subscribe("user:1")
	defer unsub()
	for i := 0; i < 3; i++ {
		_ = h.Publish(context.Background(), "user:1", Message{})
	}
	st := h.Stats()
	if st.Published != 1 || st.Dropped != 2 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestHubUnsubscribe(t *testing.T) {
	t.Parallel()
	h := NewHub(1)
	ch, unsub := h.Subscribe("user:1")
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	if st := h.Stats(); st.Subscribers != 0 || st.Topics != 0 {
		t.Fatalf("stats after unsubscribe = %+v", st)
	}
	if err := h.Publish(context.Background(), "user:1", Message{}); err != nil {
		t.Fatalf("publish without subscribers: %v", err)
	}
}

func TestHubPublishDuringUnsubscribe(t *testing.T) {
	t.Parallel()
	h := NewHub(1)
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		_, unsub := h.Subscribe("user:1")
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = h.Publish(ctx, "user:1", Message{Event: "notification"})
		}()
		go func() {
			defer wg.Done()
			unsub()
		}()
		wg.Wait()
	}
	st := h.Stats()
	if st.Subscribers != 0 {
		t.Fatalf("subscribers left = %d", st.Subscribers)
	}
	if st.Published+st.Dropped > 200 {
		t.Fatalf("counted %d sends for 200 publishes", st.Published+st.Dropped)
	}
}

func TestEncodeView(t *testing.T) {
	t.Parallel()
	data, fellBack, err := Encode(sample(), true, nil)
	if err != nil || fellBack {
		t.Fatalf("Encode: fellBack=%v err=%v", fellBack, err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["link"] != "/pets/1/events/3" {
		t.Fatalf("link not hoisted: %v", got["link"])
	}
	if got["created_at_formatted"] != "02.01.2025 15:04" {
		t.Fatalf("created_at_formatted = %v", got["created_at_formatted"])
	}
	if got["play_sound"] != true || got["is_read"] != false {
		t.Fatalf("flags = %v / %v", got["play_sound"], got["is_read"])
	}
	obj, ok := got["linked_object"].(map[string]any)
	if !ok || obj["type"] != "pet_event" || obj["id"] != float64(3) {
		t.Fatalf("linked_object = %v", got["linked_object"])
	}

	n := sample()
	n.Target = model.TargetRef{}
	n.Metadata = nil
	data, _, _ = Encode(n, false, nil)
	if !bytes.Contains(data, []byte(`"linked_object":null`)) || bytes.Contains(data, []byte(`"link"`)) {
		t.Fatalf("untargeted view = %s", data)
	}
}

func TestEncodeFallsBack(t *testing.T) {
	t.Parallel()
	n := sample()
	n.Metadata = model.Metadata{"bad": make(chan int)}
	data, fellBack, err := Encode(n, true, nil)
	if err != nil || !fellBack {
		t.Fatalf("expected fallback, got fellBack=%v err=%v", fellBack, err)
	}
	var got map[string]any
	_ = json.Unmarshal(data, &got)
	if len(got) != 4 || got["id"] != "n1" || got["category"] != "medical" {
		t.Fatalf("minimal payload = %s", data)
	}
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, string, Message) error {
	f.calls++
	return errors.New("broker down")
}

func TestDispatcherSwallowsTransportErrors(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	pub := &failingPublisher{}
	d := NewDispatcher(pub, time.Second, nil, logx.NewWriter(&buf, "debug"))
	d.Dispatch(context.Background(), sample(), true)
	if pub.calls != 1 {
		t.Fatalf("calls = %d", pub.calls)
	}
	if !strings.Contains(buf.String(), "realtime publish failed") {
		t.Fatalf("failure not logged: %s", buf.String())
	}
}

func TestDispatcherPublishesToRecipientTopic(t *testing.T) {
	t.Parallel()
	h := NewHub(2)
	ch, unsub := h.Subscribe(Topic(7))
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // a cancelled caller still gets its push
	NewDispatcher(h, 0, nil, logx.Nop()).Dispatch(ctx, sample(), false)

	select {
	case m := <-ch:
		if m.Event != EventNotification || !bytes.Contains(m.Data, []byte(`"id":"n1"`)) {
			t.Fatalf("frame = %+v", m)
		}
	default:
		t.Fatal("no frame published")
	}
}
