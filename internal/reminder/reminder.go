package reminder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"petnotify/internal/model"
	"petnotify/internal/notifier"
	"petnotify/internal/storage"
	logx "petnotify/pkg/logx"
)

const DefaultTick = time.Minute

// Resolver returns the candidates of a pet-scoped reminder.
type Resolver interface {
	ForPet(ctx context.Context, petID int64, author *model.UserID, includeAuthor bool) ([]model.UserID, error)
}

// Publisher stores a notification and delivers it when it is new.
type Publisher interface {
	Publish(ctx context.Context, in model.NewNotification) (model.Notification, bool, error)
}

type Config struct {
	// Tick is the cadence of ScanUpcoming and the width of its window.
	Tick     time.Duration
	Location *time.Location
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Result counts the outcome of one scan.
type Result struct {
	Events  int
	Created int
	Skipped int
	Failed  int
}

type Service struct {
	store storage.Store
	res   Resolver
	pub   Publisher
	log   logx.Logger

	mu  sync.RWMutex
	cfg Config
}

func New(store storage.Store, res Resolver, pub Publisher, cfg Config, log logx.Logger) *Service {
	s := &Service{store: store, res: res, pub: pub, log: log}
	s.Apply(cfg)
	return s
}

// Apply swaps cadence and timezone; it takes effect on the next scan.
func (s *Service) Apply(cfg Config) {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// TimerTrigger is the trigger key of an upcoming-event reminder.
func TimerTrigger(leadMinutes int) string { return fmt.Sprintf("timer_%d", leadMinutes) }

// RepeatTrigger is the trigger key of a recurrence prompt for one calendar day.
func RepeatTrigger(eventID int64, day time.Time) string {
	return fmt.Sprintf("repeat_%d_%s", eventID, day.Format("2006-01-02"))
}

// ScanUpcoming reminds recipients of planned events starting in
// [now+L, now+L+tick) for every configured lead time L. A recipient is only
// reminded at their own lead time.
func (s *Service) ScanUpcoming(ctx context.Context) (Result, error) {
	cfg := s.config()
	now := cfg.Now()

	leads, err := s.leadTimes(ctx)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, lead := range leads {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		from := now.Add(time.Duration(lead) * time.Minute)
		to := from.Add(cfg.Tick)
		events, err := s.store.EventsStartingBetween(ctx, from, to, model.EventPlanned)
		if err != nil {
			s.log.Warn("upcoming events query failed", logx.Int("lead", lead), logx.Err(err))
			res.Failed++
			continue
		}
		for _, e := range events {
			res.Events++
			s.remindEvent(ctx, e, lead, cfg.Location, &res)
		}
	}
	if res.Created > 0 || res.Failed > 0 {
		s.log.Info("upcoming reminders scanned",
			logx.Int("events", res.Events),
			logx.Int("created", res.Created),
			logx.Int("skipped", res.Skipped),
			logx.Int("failed", res.Failed),
		)
	}
	return res, nil
}

// leadTimes is the distinct configured leads plus the default, which covers
// users without a settings row.
func (s *Service) leadTimes(ctx context.Context) ([]int, error) {
	stored, err := s.store.LeadTimes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load lead times: %w", err)
	}
	seen := map[int]struct{}{model.DefaultLeadMinutes: {}}
	for _, l := range stored {
		seen[l] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Ints(out)
	return out, nil
}

func (s *Service) remindEvent(ctx context.Context, e model.PetEvent, lead int, loc *time.Location, res *Result) {
	users, err := s.res.ForPet(ctx, e.PetID, nil, true)
	if err != nil {
		s.log.Warn("reminder recipients failed", logx.Int64("event_id", e.ID), logx.Err(err))
		res.Failed++
		return
	}
	trig := TimerTrigger(lead)
	target := model.TargetRef{Type: model.TargetPetEvent, ID: e.ID}
	petName := s.petName(ctx, e.PetID)

	for _, u := range users {
		st, err := s.store.GetOrCreateSettings(ctx, u)
		if err != nil {
			s.log.Warn("reminder settings failed", logx.Int64("user_id", int64(u)), logx.Err(err))
			res.Failed++
			continue
		}
		if st.ReminderLeadMinutes != lead {
			continue
		}
		done, err := s.store.Exists(ctx, u, target, map[string]string{model.MetaTrigger: trig})
		if err != nil {
			s.log.Warn("reminder dedupe check failed", logx.Int64("user_id", int64(u)), logx.Err(err))
			res.Failed++
			continue
		}
		if done {
			res.Skipped++
			continue
		}
		_, created, err := s.pub.Publish(ctx, UpcomingNotification(u, e, petName, lead, loc))
		switch {
		case err != nil:
			s.log.Warn("reminder create failed",
				logx.Int64("user_id", int64(u)),
				logx.Int64("event_id", e.ID),
				logx.Err(err),
			)
			res.Failed++
		case created:
			res.Created++
		default:
			res.Skipped++
		}
	}
}

// ScanRecurrence prompts recipients to reschedule events whose next
// occurrence falls on the current calendar day.
func (s *Service) ScanRecurrence(ctx context.Context) (Result, error) {
	cfg := s.config()
	local := cfg.Now().In(cfg.Location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, cfg.Location)

	events, err := s.store.EventsDueBetween(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return Result{}, fmt.Errorf("load due events: %w", err)
	}

	var res Result
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Events++
		users, err := s.res.ForPet(ctx, e.PetID, nil, true)
		if err != nil {
			s.log.Warn("recurrence recipients failed", logx.Int64("event_id", e.ID), logx.Err(err))
			res.Failed++
			continue
		}
		trig := RepeatTrigger(e.ID, day)
		target := model.TargetRef{Type: model.TargetPetEvent, ID: e.ID}
		petName := s.petName(ctx, e.PetID)
		for _, u := range users {
			done, err := s.store.Exists(ctx, u, target, map[string]string{model.MetaTrigger: trig})
			if err != nil {
				s.log.Warn("recurrence dedupe check failed", logx.Int64("user_id", int64(u)), logx.Err(err))
				res.Failed++
				continue
			}
			if done {
				res.Skipped++
				continue
			}
			_, created, err := s.pub.Publish(ctx, RecurrenceNotification(u, e, petName, day))
			switch {
			case err != nil:
				s.log.Warn("recurrence create failed", logx.Int64("user_id", int64(u)), logx.Err(err))
				res.Failed++
			case created:
				res.Created++
			default:
				res.Skipped++
			}
		}
	}
	s.log.Info("recurrence scan finished",
		logx.String("day", day.Format("2006-01-02")),
		logx.Int("events", res.Events),
		logx.Int("created", res.Created),
		logx.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *Service) petName(ctx context.Context, petID int64) string {
	return notifier.PetName(ctx, s.store, petID, s.log)
}

// UpcomingNotification renders a lead-time reminder.
func UpcomingNotification(to model.UserID, e model.PetEvent, petName string, lead int, loc *time.Location) model.NewNotification {
	at := e.StartsAt.In(loc)
	return model.NewNotification{
		RecipientID: to,
		Category:    model.CategoryReminder,
		Title:       "Reminder: " + e.Title,
		Message:     fmt.Sprintf("%q for %s starts at %s.", notifier.TypeLabel(e), petName, at.Format("02.01 15:04")),
		Target:      model.TargetRef{Type: model.TargetPetEvent, ID: e.ID},
		Metadata: model.Metadata{
			model.MetaTrigger: TimerTrigger(lead),
			"pet_id":          e.PetID,
			"event_id":        e.ID,
			"event_date":      at.Format(time.RFC3339),
			model.MetaLink:    notifier.EventLink(e.PetID, e.ID),
		},
	}
}

// RecurrenceNotification renders the daily reschedule prompt. The row id is
// chosen up front so the Dismiss action can point at it.
func RecurrenceNotification(to model.UserID, e model.PetEvent, petName string, day time.Time) model.NewNotification {
	id := uuid.New().String()
	actions := []model.Action{
		{Label: "Schedule", Style: "primary", Method: "POST", Endpoint: fmt.Sprintf("/api/pet-events/%d/repeat", e.ID)},
		{Label: "Dismiss", Style: "secondary", Method: "PUT", Endpoint: fmt.Sprintf("/api/notifications/%s/read", id)},
	}
	return model.NewNotification{
		ID:          id,
		RecipientID: to,
		Category:    model.CategoryAction,
		Title:       "Time to repeat: " + e.Title,
		Message:     fmt.Sprintf("%q for %s is due again. Schedule the next one?", notifier.TypeLabel(e), petName),
		Target:      model.TargetRef{Type: model.TargetPetEvent, ID: e.ID},
		Metadata: model.Metadata{
			model.MetaTrigger: RepeatTrigger(e.ID, day),
			"pet_id":          e.PetID,
			"event_id":        e.ID,
			model.MetaLink:    notifier.EventLink(e.PetID, e.ID),
			model.MetaActions: actions,
		},
	}
}
