package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"petnotify/internal/model"
)

// memoryStore keeps everything in process memory. It honors the same
// uniqueness and scoping rules as the sqlite driver.
type memoryStore struct {
	now func() time.Time

	mu       sync.RWMutex
	seq      int64
	notes    map[string]*model.Notification
	order    []*model.Notification // ascending seq
	triggers map[triggerKey]string // -> notification id

	settings map[model.UserID]model.Settings

	pets   map[int64]model.Pet
	grants map[int64]map[model.UserID]model.AccessGrant
	events map[int64]model.PetEvent
}

type triggerKey struct {
	recipient model.UserID
	target    model.TargetRef
	trigger   string
}

// NewMemory returns an empty in-memory store.
func NewMemory(cfg Config) Store {
	return &memoryStore{
		now:      clock(cfg),
		notes:    map[string]*model.Notification{},
		triggers: map[triggerKey]string{},
		settings: map[model.UserID]model.Settings{},
		pets:     map[int64]model.Pet{},
		grants:   map[int64]map[model.UserID]model.AccessGrant{},
		events:   map[int64]model.PetEvent{},
	}
}

func (s *memoryStore) Ping(context.Context) error { return nil }
func (s *memoryStore) Close() error               { return nil }

// ---- notifications ----

func (s *memoryStore) Create(ctx context.Context, in model.NewNotification) (model.Notification, bool, error) {
	in, err := normalizeNew(in)
	if err != nil {
		return model.Notification{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trig := in.Metadata.String(model.MetaTrigger)
	tk := triggerKey{recipient: in.RecipientID, target: in.Target, trigger: trig}
	if trig != "" {
		if id, ok := s.triggers[tk]; ok {
			return cloneNote(s.notes[id]), false, nil
		}
	}

	if _, taken := s.notes[in.ID]; taken {
		return model.Notification{}, false, fmt.Errorf("%w: id %s already used", ErrInvalid, in.ID)
	}

	s.seq++
	n := &model.Notification{
		ID:          in.ID,
		RecipientID: in.RecipientID,
		Category:    in.Category,
		Title:       in.Title,
		Message:     in.Message,
		Target:      in.Target,
		Metadata:    in.Metadata,
		CreatedAt:   stamp(s.now),
		Seq:         s.seq,
	}
	s.notes[n.ID] = n
	s.order = append(s.order, n)
	if trig != "" {
		s.triggers[tk] = n.ID
	}
	return cloneNote(n), true, nil
}

func (s *memoryStore) Exists(ctx context.Context, recipient model.UserID, target model.TargetRef, meta map[string]string) (bool, error) {
	for k := range meta {
		if !validMetaKey(k) {
			return false, fmt.Errorf("%w: metadata key %q", ErrInvalid, k)
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.order {
		if n.RecipientID != recipient || n.Target != target {
			continue
		}
		if metaMatches(n.Metadata, meta) {
			return true, nil
		}
	}
	return false, nil
}

func metaMatches(m model.Metadata, want map[string]string) bool {
	for k, v := range want {
		got, ok := m[k]
		if !ok || fmt.Sprint(got) != v {
			return false
		}
	}
	return true
}

func (s *memoryStore) Get(ctx context.Context, id string, recipient model.UserID) (model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := s.ownedLocked(id, recipient)
	if err != nil {
		return model.Notification{}, err
	}
	return cloneNote(n), nil
}

func (s *memoryStore) ownedLocked(id string, recipient model.UserID) (*model.Notification, error) {
	n, ok := s.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	if n.RecipientID != recipient {
		return nil, ErrForbidden
	}
	return n, nil
}

func (s *memoryStore) MarkRead(ctx context.Context, id string, recipient model.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.ownedLocked(id, recipient)
	if err != nil {
		return err
	}
	n.IsRead = true
	return nil
}

func (s *memoryStore) MarkAllRead(ctx context.Context, recipient model.UserID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for _, n := range s.order {
		if n.RecipientID == recipient && !n.IsRead {
			n.IsRead = true
			changed++
		}
	}
	return changed, nil
}

func (s *memoryStore) List(ctx context.Context, recipient model.UserID, f ListFilter) (Page, error) {
	before, err := parsePageToken(f.PageToken)
	if err != nil {
		return Page{}, err
	}
	size := f.pageSize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.Notification, 0, size+1)
	for i := len(s.order) - 1; i >= 0 && len(items) <= size; i-- {
		n := s.order[i]
		if n.RecipientID != recipient {
			continue
		}
		if before > 0 && n.Seq >= before {
			continue
		}
		if f.UnreadOnly && n.IsRead {
			continue
		}
		if f.Category != "" && n.Category != f.Category {
			continue
		}
		items = append(items, cloneNote(n))
	}
	return pageOf(items, size), nil
}

func (s *memoryStore) UnreadCount(ctx context.Context, recipient model.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := 0
	for _, n := range s.order {
		if n.RecipientID == recipient && !n.IsRead {
			c++
		}
	}
	return c, nil
}

func cloneNote(n *model.Notification) model.Notification {
	if n == nil {
		return model.Notification{}
	}
	cp := *n
	cp.Metadata = n.Metadata.Clone()
	return cp
}

func parsePageToken(tok string) (int64, error) {
	if tok == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: page token", ErrInvalid)
	}
	return v, nil
}

// pageOf trims a pageSize+1 fetch down to one page and sets the cursor.
func pageOf(items []model.Notification, size int) Page {
	p := Page{Items: items}
	if len(items) > size {
		p.Items = items[:size]
		p.NextPageToken = strconv.FormatInt(p.Items[size-1].Seq, 10)
	}
	return p
}

// ---- settings ----

func (s *memoryStore) GetOrCreateSettings(ctx context.Context, user model.UserID) (model.Settings, error) {
	if user <= 0 {
		return model.Settings{}, fmt.Errorf("%w: user", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[user]
	if !ok {
		st = model.DefaultSettings(user)
		s.settings[user] = st
	}
	return st, nil
}

func (s *memoryStore) UpdateSettings(ctx context.Context, st model.Settings) (model.Settings, error) {
	if err := st.Validate(); err != nil {
		return model.Settings{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	s.mu.Lock()
	s.settings[st.UserID] = st
	s.mu.Unlock()
	return st, nil
}

func (s *memoryStore) PatchSettings(ctx context.Context, user model.UserID, p model.SettingsPatch) (model.Settings, error) {
	if user <= 0 {
		return model.Settings{}, fmt.Errorf("%w: user", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[user]
	if !ok {
		st = model.DefaultSettings(user)
	}
	p.Apply(&st)
	if err := st.Validate(); err != nil {
		return model.Settings{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	s.settings[user] = st
	return st, nil
}

func (s *memoryStore) LeadTimes(ctx context.Context) ([]int, error) {
	s.mu.RLock()
	seen := map[int]struct{}{}
	for _, st := range s.settings {
		seen[st.ReminderLeadMinutes] = struct{}{}
	}
	s.mu.RUnlock()
	out := make([]int, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Ints(out)
	return out, nil
}

// ---- domain view ----

func (s *memoryStore) UpsertPet(ctx context.Context, p model.Pet) error {
	if p.ID <= 0 {
		return fmt.Errorf("%w: pet id", ErrInvalid)
	}
	s.mu.Lock()
	s.pets[p.ID] = p
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) GetPet(ctx context.Context, id int64) (model.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pets[id]
	if !ok {
		return model.Pet{}, ErrNotFound
	}
	return p, nil
}

func (s *memoryStore) ReplaceGrants(ctx context.Context, petID int64, grants []model.AccessGrant) error {
	m := make(map[model.UserID]model.AccessGrant, len(grants))
	for _, g := range grants {
		g.PetID = petID
		m[g.UserID] = g
	}
	s.mu.Lock()
	s.grants[petID] = m
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) UpsertGrant(ctx context.Context, g model.AccessGrant) (bool, error) {
	if g.PetID <= 0 || g.UserID <= 0 {
		return false, fmt.Errorf("%w: grant", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.grants[g.PetID]
	if m == nil {
		m = map[model.UserID]model.AccessGrant{}
		s.grants[g.PetID] = m
	}
	prev, existed := m[g.UserID]
	m[g.UserID] = g
	return g.Active && (!existed || !prev.Active), nil
}

func (s *memoryStore) ListGrants(ctx context.Context, petID int64) ([]model.AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AccessGrant, 0, len(s.grants[petID]))
	for _, g := range s.grants[petID] {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *memoryStore) UpsertEvent(ctx context.Context, e model.PetEvent) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	s.mu.Lock()
	s.events[e.ID] = e
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) GetEvent(ctx context.Context, id int64) (model.PetEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return model.PetEvent{}, ErrNotFound
	}
	return e, nil
}

func (s *memoryStore) EventsStartingBetween(ctx context.Context, from, to time.Time, status model.EventStatus) ([]model.PetEvent, error) {
	return s.filterEvents(func(e model.PetEvent) bool {
		return e.Status == status && !e.StartsAt.Before(from) && e.StartsAt.Before(to)
	}), nil
}

func (s *memoryStore) EventsDueBetween(ctx context.Context, from, to time.Time) ([]model.PetEvent, error) {
	return s.filterEvents(func(e model.PetEvent) bool {
		return e.NextDate != nil && !e.NextDate.Before(from) && e.NextDate.Before(to)
	}), nil
}

func (s *memoryStore) filterEvents(keep func(model.PetEvent) bool) []model.PetEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.PetEvent
	for _, e := range s.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
