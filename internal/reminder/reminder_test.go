package reminder

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"petnotify/internal/model"
	"petnotify/internal/notifier"
	"petnotify/internal/preference"
	"petnotify/internal/realtime"
	"petnotify/internal/resolver"
	"petnotify/internal/storage"
	logx "petnotify/pkg/logx"
)

var base = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func uid(v int64) *model.UserID {
	u := model.UserID(v)
	return &u
}

func newService(t *testing.T, c *clock) (*Service, storage.Store, *realtime.Hub) {
	t.Helper()
	return newServiceOn(t, c, storage.NewMemory(storage.Config{Driver: "memory"}))
}

func newServiceOn(t *testing.T, c *clock, st storage.Store) (*Service, storage.Store, *realtime.Hub) {
	t.Helper()
	hub := realtime.NewHub(8)
	log := logx.Nop()
	res := resolver.New(st, log)
	p := notifier.New(st, res, preference.New(st, log), realtime.NewDispatcher(hub, time.Second, time.UTC, log), nil, log)
	svc := New(st, res, p, Config{Tick: time.Minute, Location: time.UTC, Now: c.now}, log)

	ctx := context.Background()
	if err := st.UpsertPet(ctx, model.Pet{ID: 1, Name: "Rex", OwnerID: uid(1)}); err != nil {
		t.Fatalf("UpsertPet: %v", err)
	}
	if err := st.ReplaceGrants(ctx, 1, []model.AccessGrant{{UserID: 2, Level: model.AccessWrite, Active: true}}); err != nil {
		t.Fatalf("ReplaceGrants: %v", err)
	}
	return svc, st, hub
}

func upsertEvent(t *testing.T, st storage.Store, e model.PetEvent) {
	t.Helper()
	if err := st.UpsertEvent(context.Background(), e); err != nil {
		t.Fatalf("UpsertEvent: %v", err)
	}
}

func setLead(t *testing.T, st storage.Store, user model.UserID, lead int) {
	t.Helper()
	s := model.DefaultSettings(user)
	s.ReminderLeadMinutes = lead
	if _, err := st.UpdateSettings(context.Background(), s); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
}

func TestScanUpcomingOncePerLead(t *testing.T) {
	t.Parallel()
	c := &clock{t: base}
	svc, st, _ := newService(t, c)
	ctx := context.Background()

	setLead(t, st, 1, 60)
	upsertEvent(t, st, model.PetEvent{
		ID: 7, PetID: 1, Title: "Vet visit", TypeName: "Checkup",
		Status: model.EventPlanned, StartsAt: base.Add(60 * time.Minute),
	})

	res, err := svc.ScanUpcoming(ctx)
	if err != nil {
		t.Fatalf("ScanUpcoming: %v", err)
	}
	// user 2 has no settings row and falls back to the default lead of 60.
	if res.Created != 2 {
		t.Fatalf("created = %d, want 2 (%+v)", res.Created, res)
	}

	page, err := st.List(ctx, 1, storage.ListFilter{})
	if err != nil || len(page.Items) != 1 {
		t.Fatalf("List = %+v, %v", page, err)
	}
	n := page.Items[0]
	if n.Trigger() != "timer_60" || n.Category != model.CategoryReminder {
		t.Fatalf("unexpected reminder: %+v", n)
	}
	if n.Title != "Reminder: Vet visit" || n.Message != `"Checkup" for Rex starts at 10.03 09:00.` {
		t.Fatalf("rendering: %q / %q", n.Title, n.Message)
	}

	// Same window again: nothing new.
	res, err = svc.ScanUpcoming(ctx)
	if err != nil || res.Created != 0 || res.Skipped != 2 {
		t.Fatalf("repeat scan = %+v, %v", res, err)
	}

	// 30 seconds later.
	c.t = base.Add(30 * time.Second)
	if res, err = svc.ScanUpcoming(ctx); err != nil || res.Created != 0 {
		t.Fatalf("later scan = %+v, %v", res, err)
	}
	if cnt, _ := st.UnreadCount(ctx, 1); cnt != 1 {
		t.Fatalf("owner unread = %d, want 1", cnt)
	}
}

func TestScanUpcomingHonorsPersonalLead(t *testing.T) {
	t.Parallel()
	c := &clock{t: base}
	svc, st, _ := newService(t, c)
	ctx := context.Background()

	setLead(t, st, 1, 15)
	setLead(t, st, 2, 60)
	upsertEvent(t, st, model.PetEvent{
		ID: 8, PetID: 1, Title: "Walk", Status: model.EventPlanned, StartsAt: base.Add(15 * time.Minute),
	})

	res, err := svc.ScanUpcoming(ctx)
	if err != nil {
		t.Fatalf("ScanUpcoming: %v", err)
	}
	if res.Created != 1 {
		t.Fatalf("created = %d, want 1", res.Created)
	}
	if cnt, _ := st.UnreadCount(ctx, 2); cnt != 0 {
		t.Fatalf("user with a 60 minute lead was reminded at 15")
	}
	if cnt, _ := st.UnreadCount(ctx, 1); cnt != 1 {
		t.Fatalf("owner unread = %d, want 1", cnt)
	}
}

func TestScanUpcomingSkipsNonPlanned(t *testing.T) {
	t.Parallel()
	c := &clock{t: base}
	svc, st, _ := newService(t, c)
	upsertEvent(t, st, model.PetEvent{
		ID: 9, PetID: 1, Title: "Done", Status: model.EventCompleted, StartsAt: base.Add(time.Hour),
	})
	res, err := svc.ScanUpcoming(context.Background())
	if err != nil || res.Events != 0 || res.Created != 0 {
		t.Fatalf("ScanUpcoming = %+v, %v", res, err)
	}
}

func TestScanUpcomingOrphanEvent(t *testing.T) {
	t.Parallel()
	c := &clock{t: base}
	svc, st, _ := newService(t, c)
	ctx := context.Background()
	if err := st.UpsertPet(ctx, model.Pet{ID: 2, Name: "Ghost"}); err != nil {
		t.Fatalf("UpsertPet: %v", err)
	}
	upsertEvent(t, st, model.PetEvent{
		ID: 10, PetID: 2, Title: "Nobody", Status: model.EventPlanned, StartsAt: base.Add(time.Hour),
	})
	res, err := svc.ScanUpcoming(ctx)
	if err != nil || res.Events != 1 || res.Created != 0 || res.Failed != 0 {
		t.Fatalf("ScanUpcoming = %+v, %v", res, err)
	}
}

func TestScanRecurrenceOncePerDay(t *testing.T) {
	t.Parallel()
	c := &clock{t: base}
	svc, st, hub := newService(t, c)
	ctx := context.Background()

	due := base.Add(5 * time.Hour)
	upsertEvent(t, st, model.PetEvent{
		ID: 11, PetID: 1, Title: "Deworming", TypeName: "Deworming",
		Status: model.EventCompleted, StartsAt: base.AddDate(0, -3, 0), NextDate: &due,
	})
	ch, cancel := hub.Subscribe(realtime.Topic(1))
	defer cancel()

	res, err := svc.ScanRecurrence(ctx)
	if err != nil || res.Created != 2 {
		t.Fatalf("ScanRecurrence = %+v, %v", res, err)
	}
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("recurrence prompt was not pushed")
	}

	page, err := st.List(ctx, 1, storage.ListFilter{})
	if err != nil || len(page.Items) != 1 {
		t.Fatalf("List = %+v, %v", page, err)
	}
	n := page.Items[0]
	if n.Trigger() != "repeat_11_2026-03-10" || n.Category != model.CategoryAction {
		t.Fatalf("unexpected prompt: %+v", n)
	}
	actions, ok := n.Metadata[model.MetaActions].([]model.Action)
	if !ok || len(actions) != 2 {
		t.Fatalf("actions = %#v", n.Metadata[model.MetaActions])
	}
	if actions[0].Endpoint != "/api/pet-events/11/repeat" {
		t.Fatalf("schedule endpoint = %q", actions[0].Endpoint)
	}
	if actions[1].Endpoint != "/api/notifications/"+n.ID+"/read" {
		t.Fatalf("dismiss endpoint = %q, id %s", actions[1].Endpoint, n.ID)
	}

	c.t = base.Add(3 * time.Hour)
	if res, err = svc.ScanRecurrence(ctx); err != nil || res.Created != 0 || res.Skipped != 2 {
		t.Fatalf("second scan = %+v, %v", res, err)
	}

	// Next day the event is no longer due.
	c.t = base.AddDate(0, 0, 1)
	if res, err = svc.ScanRecurrence(ctx); err != nil || res.Events != 0 {
		t.Fatalf("next day scan = %+v, %v", res, err)
	}
}

func TestOverlappingScansCreateOnce(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"memory", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			cfg := storage.Config{Driver: driver}
			if driver == "sqlite" {
				cfg.Path = filepath.Join(t.TempDir(), "notify.db")
			}
			st, err := storage.Open(cfg, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			t.Cleanup(func() { _ = st.Close() })

			svc, st, hub := newServiceOn(t, &clock{t: base}, st)
			ctx := context.Background()
			setLead(t, st, 1, 60)
			upsertEvent(t, st, model.PetEvent{
				ID: 7, PetID: 1, Title: "Vet visit", Status: model.EventPlanned, StartsAt: base.Add(60 * time.Minute),
			})
			due := base.Add(5 * time.Hour)
			upsertEvent(t, st, model.PetEvent{
				ID: 11, PetID: 1, Title: "Deworming", Status: model.EventCompleted,
				StartsAt: base.AddDate(0, -3, 0), NextDate: &due,
			})
			ch, cancel := hub.Subscribe(realtime.Topic(1))
			defer cancel()

			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(2)
				go func() {
					defer wg.Done()
					if _, err := svc.ScanUpcoming(ctx); err != nil {
						t.Errorf("ScanUpcoming: %v", err)
					}
				}()
				go func() {
					defer wg.Done()
					if _, err := svc.ScanRecurrence(ctx); err != nil {
						t.Errorf("ScanRecurrence: %v", err)
					}
				}()
			}
			wg.Wait()

			page, err := st.List(ctx, 1, storage.ListFilter{})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			triggers := map[string]int{}
			for _, n := range page.Items {
				triggers[n.Trigger()]++
			}
			if len(page.Items) != 2 || triggers["timer_60"] != 1 || triggers["repeat_11_2026-03-10"] != 1 {
				t.Fatalf("rows for user 1 = %v", triggers)
			}
			pushes := 0
			for done := false; !done; {
				select {
				case <-ch:
					pushes++
				default:
					done = true
				}
			}
			if pushes != 2 {
				t.Fatalf("pushes = %d, want 2", pushes)
			}
		})
	}
}

func TestTriggerKeys(t *testing.T) {
	t.Parallel()
	if got := TimerTrigger(1440); got != "timer_1440" {
		t.Fatalf("TimerTrigger = %q", got)
	}
	day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	if got := RepeatTrigger(5, day); got != "repeat_5_2026-01-02" {
		t.Fatalf("RepeatTrigger = %q", got)
	}
	in := RecurrenceNotification(1, model.PetEvent{ID: 5, PetID: 1, Title: "x"}, "Rex", day)
	if !strings.Contains(in.Message, "Rex") || in.ID == "" {
		t.Fatalf("RecurrenceNotification = %+v", in)
	}
}
