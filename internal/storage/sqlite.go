package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"petnotify/internal/model"
	logx "petnotify/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sqlx.DB
	log logx.Logger
	now func() time.Time
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log.With(logx.String("comp", "storage")), now: clock(cfg)}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	st.log.Debug("sqlite store ready", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- notifications ----

type notificationRow struct {
	Seq         int64  `db:"seq"`
	ID          string `db:"id"`
	RecipientID int64  `db:"recipient_id"`
	Category    string `db:"category"`
	Title       string `db:"title"`
	Message     string `db:"message"`
	TargetType  string `db:"target_type"`
	TargetID    int64  `db:"target_id"`
	Metadata    string `db:"metadata"`
	TriggerKey  string `db:"trigger_key"`
	IsRead      bool   `db:"is_read"`
	CreatedAt   int64  `db:"created_at"`
}

const notificationCols = `seq, id, recipient_id, category, title, message, target_type, target_id, metadata, trigger_key, is_read, created_at`

func (r notificationRow) toModel() (model.Notification, error) {
	meta := model.Metadata{}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &meta); err != nil {
			return model.Notification{}, fmt.Errorf("decoding metadata of %s: %w", r.ID, err)
		}
	}
	return model.Notification{
		ID:          r.ID,
		RecipientID: model.UserID(r.RecipientID),
		Category:    model.Category(r.Category),
		Title:       r.Title,
		Message:     r.Message,
		Target:      model.TargetRef{Type: r.TargetType, ID: r.TargetID},
		Metadata:    meta,
		IsRead:      r.IsRead,
		CreatedAt:   time.UnixMilli(r.CreatedAt).UTC(),
		Seq:         r.Seq,
	}, nil
}

func (s *sqliteStore) Create(ctx context.Context, in model.NewNotification) (model.Notification, bool, error) {
	in, err := normalizeNew(in)
	if err != nil {
		return model.Notification{}, false, err
	}
	metaJSON, err := json.Marshal(in.Metadata)
	if err != nil {
		return model.Notification{}, false, fmt.Errorf("%w: metadata: %v", ErrInvalid, err)
	}
	trig := in.Metadata.String(model.MetaTrigger)
	id := in.ID
	at := stamp(s.now)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, recipient_id, category, title, message,
			target_type, target_id, metadata, trigger_key, is_read, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT DO NOTHING`,
		id, int64(in.RecipientID), string(in.Category), in.Title, in.Message,
		in.Target.Type, in.Target.ID, string(metaJSON), trig, at.UnixMilli(),
	)
	if err != nil {
		return model.Notification{}, false, fmt.Errorf("creating notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if trig == "" {
			return model.Notification{}, false, fmt.Errorf("%w: id %s already used", ErrInvalid, id)
		}
		var row notificationRow
		err := s.db.GetContext(ctx, &row,
			`SELECT `+notificationCols+` FROM notifications
			 WHERE recipient_id = ? AND target_type = ? AND target_id = ? AND trigger_key = ?`,
			int64(in.RecipientID), in.Target.Type, in.Target.ID, trig,
		)
		if errors.Is(err, sql.ErrNoRows) {
			// The conflict was on the id, not the trigger.
			return model.Notification{}, false, fmt.Errorf("%w: id %s already used", ErrInvalid, id)
		}
		if err != nil {
			return model.Notification{}, false, fmt.Errorf("loading existing notification: %w", err)
		}
		existing, err := row.toModel()
		return existing, false, err
	}
	seq, _ := res.LastInsertId()
	return model.Notification{
		ID:          id,
		RecipientID: in.RecipientID,
		Category:    in.Category,
		Title:       in.Title,
		Message:     in.Message,
		Target:      in.Target,
		Metadata:    in.Metadata,
		CreatedAt:   at,
		Seq:         seq,
	}, true, nil
}

func (s *sqliteStore) Exists(ctx context.Context, recipient model.UserID, target model.TargetRef, meta map[string]string) (bool, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT EXISTS (SELECT 1 FROM notifications WHERE recipient_id = ? AND target_type = ? AND target_id = ?`)
	args := []any{int64(recipient), target.Type, target.ID}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		if !validMetaKey(k) {
			return false, fmt.Errorf("%w: metadata key %q", ErrInvalid, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == model.MetaTrigger {
			q.WriteString(` AND trigger_key = ?`)
			args = append(args, meta[k])
			continue
		}
		q.WriteString(` AND CAST(json_extract(metadata, ?) AS TEXT) = ?`)
		args = append(args, "$."+k, meta[k])
	}
	q.WriteString(`)`)

	var found bool
	if err := s.db.GetContext(ctx, &found, q.String(), args...); err != nil {
		return false, fmt.Errorf("checking notification: %w", err)
	}
	return found, nil
}

func (s *sqliteStore) owned(ctx context.Context, id string, recipient model.UserID) (notificationRow, error) {
	var row notificationRow
	err := s.db.GetContext(ctx, &row, `SELECT `+notificationCols+` FROM notifications WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return row, ErrNotFound
	}
	if err != nil {
		return row, fmt.Errorf("loading notification %s: %w", id, err)
	}
	if model.UserID(row.RecipientID) != recipient {
		return row, ErrForbidden
	}
	return row, nil
}

func (s *sqliteStore) Get(ctx context.Context, id string, recipient model.UserID) (model.Notification, error) {
	row, err := s.owned(ctx, id, recipient)
	if err != nil {
		return model.Notification{}, err
	}
	return row.toModel()
}

func (s *sqliteStore) MarkRead(ctx context.Context, id string, recipient model.UserID) error {
	if _, err := s.owned(ctx, id, recipient); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND recipient_id = ?`, id, int64(recipient))
	if err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

func (s *sqliteStore) MarkAllRead(ctx context.Context, recipient model.UserID) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE recipient_id = ? AND is_read = 0`, int64(recipient))
	if err != nil {
		return 0, fmt.Errorf("marking all read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *sqliteStore) List(ctx context.Context, recipient model.UserID, f ListFilter) (Page, error) {
	before, err := parsePageToken(f.PageToken)
	if err != nil {
		return Page{}, err
	}
	size := f.pageSize()

	q := `SELECT ` + notificationCols + ` FROM notifications WHERE recipient_id = ?`
	args := []any{int64(recipient)}
	if before > 0 {
		q += ` AND seq < ?`
		args = append(args, before)
	}
	if f.UnreadOnly {
		q += ` AND is_read = 0`
	}
	if f.Category != "" {
		q += ` AND category = ?`
		args = append(args, string(f.Category))
	}
	q += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, size+1)

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return Page{}, fmt.Errorf("listing notifications: %w", err)
	}
	items := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.toModel()
		if err != nil {
			return Page{}, err
		}
		items = append(items, n)
	}
	return pageOf(items, size), nil
}

func (s *sqliteStore) UnreadCount(ctx context.Context, recipient model.UserID) (int, error) {
	var c int
	err := s.db.GetContext(ctx, &c,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0`, int64(recipient))
	if err != nil {
		return 0, fmt.Errorf("counting unread: %w", err)
	}
	return c, nil
}

// ---- settings ----

type settingsRow struct {
	UserID             int64 `db:"user_id"`
	BrowserEnabled     bool  `db:"browser_enabled"`
	PushEnabled        bool  `db:"push_enabled"`
	EmailEnabled       bool  `db:"email_enabled"`
	SoundEnabled       bool  `db:"sound_enabled"`
	NotifyMedical      bool  `db:"notify_medical"`
	NotifyCare         bool  `db:"notify_care"`
	NotifyReproduction bool  `db:"notify_reproduction"`
	NotifySystem       bool  `db:"notify_system"`
	LeadMinutes        int   `db:"reminder_lead_minutes"`
}

func (r settingsRow) toModel() model.Settings {
	return model.Settings{
		UserID:              model.UserID(r.UserID),
		BrowserEnabled:      r.BrowserEnabled,
		PushEnabled:         r.PushEnabled,
		EmailEnabled:        r.EmailEnabled,
		SoundEnabled:        r.SoundEnabled,
		NotifyMedical:       r.NotifyMedical,
		NotifyCare:          r.NotifyCare,
		NotifyReproduction:  r.NotifyReproduction,
		NotifySystem:        r.NotifySystem,
		ReminderLeadMinutes: r.LeadMinutes,
	}
}

func (s *sqliteStore) GetOrCreateSettings(ctx context.Context, user model.UserID) (model.Settings, error) {
	if user <= 0 {
		return model.Settings{}, fmt.Errorf("%w: user", ErrInvalid)
	}
	d := model.DefaultSettings(user)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_settings (
			user_id, browser_enabled, push_enabled, email_enabled, sound_enabled,
			notify_medical, notify_care, notify_reproduction, notify_system, reminder_lead_minutes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		int64(user), boolToInt(d.BrowserEnabled), boolToInt(d.PushEnabled), boolToInt(d.EmailEnabled),
		boolToInt(d.SoundEnabled), boolToInt(d.NotifyMedical), boolToInt(d.NotifyCare),
		boolToInt(d.NotifyReproduction), boolToInt(d.NotifySystem), d.ReminderLeadMinutes,
	)
	if err != nil {
		return model.Settings{}, fmt.Errorf("creating settings: %w", err)
	}
	var row settingsRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM notification_settings WHERE user_id = ?`, int64(user)); err != nil {
		return model.Settings{}, fmt.Errorf("loading settings: %w", err)
	}
	return row.toModel(), nil
}

func (s *sqliteStore) UpdateSettings(ctx context.Context, st model.Settings) (model.Settings, error) {
	if err := st.Validate(); err != nil {
		return model.Settings{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := writeSettings(ctx, s.db, st); err != nil {
		return model.Settings{}, err
	}
	return st, nil
}

func (s *sqliteStore) PatchSettings(ctx context.Context, user model.UserID, p model.SettingsPatch) (model.Settings, error) {
	if _, err := s.GetOrCreateSettings(ctx, user); err != nil {
		return model.Settings{}, err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Settings{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var row settingsRow
	if err := tx.GetContext(ctx, &row, `SELECT * FROM notification_settings WHERE user_id = ?`, int64(user)); err != nil {
		return model.Settings{}, fmt.Errorf("loading settings: %w", err)
	}
	st := row.toModel()
	p.Apply(&st)
	if err := st.Validate(); err != nil {
		return model.Settings{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := writeSettings(ctx, tx, st); err != nil {
		return model.Settings{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Settings{}, err
	}
	return st, nil
}

func writeSettings(ctx context.Context, db sqlx.ExecerContext, st model.Settings) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO notification_settings (
			user_id, browser_enabled, push_enabled, email_enabled, sound_enabled,
			notify_medical, notify_care, notify_reproduction, notify_system, reminder_lead_minutes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			browser_enabled = excluded.browser_enabled,
			push_enabled = excluded.push_enabled,
			email_enabled = excluded.email_enabled,
			sound_enabled = excluded.sound_enabled,
			notify_medical = excluded.notify_medical,
			notify_care = excluded.notify_care,
			notify_reproduction = excluded.notify_reproduction,
			notify_system = excluded.notify_system,
			reminder_lead_minutes = excluded.reminder_lead_minutes`,
		int64(st.UserID), boolToInt(st.BrowserEnabled), boolToInt(st.PushEnabled), boolToInt(st.EmailEnabled),
		boolToInt(st.SoundEnabled), boolToInt(st.NotifyMedical), boolToInt(st.NotifyCare),
		boolToInt(st.NotifyReproduction), boolToInt(st.NotifySystem), st.ReminderLeadMinutes,
	)
	if err != nil {
		return fmt.Errorf("updating settings: %w", err)
	}
	return nil
}

func (s *sqliteStore) LeadTimes(ctx context.Context) ([]int, error) {
	var out []int
	err := s.db.SelectContext(ctx, &out,
		`SELECT DISTINCT reminder_lead_minutes FROM notification_settings ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("listing lead times: %w", err)
	}
	return out, nil
}

// ---- domain view ----

func (s *sqliteStore) UpsertPet(ctx context.Context, p model.Pet) error {
	if p.ID <= 0 {
		return fmt.Errorf("%w: pet id", ErrInvalid)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pets (id, name, owner_id) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, owner_id = excluded.owner_id`,
		p.ID, p.Name, nullUser(p.OwnerID),
	)
	if err != nil {
		return fmt.Errorf("upserting pet %d: %w", p.ID, err)
	}
	return nil
}

func (s *sqliteStore) GetPet(ctx context.Context, id int64) (model.Pet, error) {
	var row struct {
		ID      int64         `db:"id"`
		Name    string        `db:"name"`
		OwnerID sql.NullInt64 `db:"owner_id"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT id, name, owner_id FROM pets WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Pet{}, ErrNotFound
	}
	if err != nil {
		return model.Pet{}, fmt.Errorf("loading pet %d: %w", id, err)
	}
	return model.Pet{ID: row.ID, Name: row.Name, OwnerID: userPtr(row.OwnerID)}, nil
}

type grantRow struct {
	PetID  int64  `db:"pet_id"`
	UserID int64  `db:"user_id"`
	Level  string `db:"level"`
	Active bool   `db:"active"`
}

func (s *sqliteStore) ReplaceGrants(ctx context.Context, petID int64, grants []model.AccessGrant) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pet_access WHERE pet_id = ?`, petID); err != nil {
		return fmt.Errorf("clearing grants of pet %d: %w", petID, err)
	}
	for _, g := range grants {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pet_access (pet_id, user_id, level, active) VALUES (?, ?, ?, ?)
			ON CONFLICT(pet_id, user_id) DO UPDATE SET level = excluded.level, active = excluded.active`,
			petID, int64(g.UserID), string(g.Level), boolToInt(g.Active),
		)
		if err != nil {
			return fmt.Errorf("writing grant: %w", err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) UpsertGrant(ctx context.Context, g model.AccessGrant) (bool, error) {
	if g.PetID <= 0 || g.UserID <= 0 {
		return false, fmt.Errorf("%w: grant", ErrInvalid)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var prev grantRow
	existed := true
	err = tx.GetContext(ctx, &prev,
		`SELECT pet_id, user_id, level, active FROM pet_access WHERE pet_id = ? AND user_id = ?`,
		g.PetID, int64(g.UserID))
	if errors.Is(err, sql.ErrNoRows) {
		existed = false
	} else if err != nil {
		return false, fmt.Errorf("loading grant: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pet_access (pet_id, user_id, level, active) VALUES (?, ?, ?, ?)
		ON CONFLICT(pet_id, user_id) DO UPDATE SET level = excluded.level, active = excluded.active`,
		g.PetID, int64(g.UserID), string(g.Level), boolToInt(g.Active),
	)
	if err != nil {
		return false, fmt.Errorf("writing grant: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return g.Active && (!existed || !prev.Active), nil
}

func (s *sqliteStore) ListGrants(ctx context.Context, petID int64) ([]model.AccessGrant, error) {
	var rows []grantRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT pet_id, user_id, level, active FROM pet_access WHERE pet_id = ? ORDER BY user_id`, petID)
	if err != nil {
		return nil, fmt.Errorf("listing grants of pet %d: %w", petID, err)
	}
	out := make([]model.AccessGrant, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.AccessGrant{
			PetID:  r.PetID,
			UserID: model.UserID(r.UserID),
			Level:  model.AccessLevel(r.Level),
			Active: r.Active,
		})
	}
	return out, nil
}

type eventRow struct {
	ID           int64         `db:"id"`
	PetID        int64         `db:"pet_id"`
	Title        string        `db:"title"`
	TypeName     string        `db:"type_name"`
	TypeSlug     string        `db:"type_slug"`
	TypeCategory string        `db:"type_category"`
	Status       string        `db:"status"`
	StartsAt     int64         `db:"starts_at"`
	NextDate     sql.NullInt64 `db:"next_date"`
	CreatedBy    sql.NullInt64 `db:"created_by"`
}

const eventCols = `id, pet_id, title, type_name, type_slug, type_category, status, starts_at, next_date, created_by`

func (r eventRow) toModel() model.PetEvent {
	e := model.PetEvent{
		ID:           r.ID,
		PetID:        r.PetID,
		Title:        r.Title,
		TypeName:     r.TypeName,
		TypeSlug:     r.TypeSlug,
		TypeCategory: r.TypeCategory,
		Status:       model.EventStatus(r.Status),
		StartsAt:     time.UnixMilli(r.StartsAt).UTC(),
		CreatedBy:    userPtr(r.CreatedBy),
	}
	if r.NextDate.Valid {
		t := time.UnixMilli(r.NextDate.Int64).UTC()
		e.NextDate = &t
	}
	return e
}

func (s *sqliteStore) UpsertEvent(ctx context.Context, e model.PetEvent) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var next any
	if e.NextDate != nil {
		next = e.NextDate.UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pet_events (`+eventCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			pet_id = excluded.pet_id,
			title = excluded.title,
			type_name = excluded.type_name,
			type_slug = excluded.type_slug,
			type_category = excluded.type_category,
			status = excluded.status,
			starts_at = excluded.starts_at,
			next_date = excluded.next_date,
			created_by = excluded.created_by`,
		e.ID, e.PetID, e.Title, e.TypeName, e.TypeSlug, e.TypeCategory, string(e.Status),
		e.StartsAt.UnixMilli(), next, nullUser(e.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("upserting event %d: %w", e.ID, err)
	}
	return nil
}

func (s *sqliteStore) GetEvent(ctx context.Context, id int64) (model.PetEvent, error) {
	var row eventRow
	err := s.db.GetContext(ctx, &row, `SELECT `+eventCols+` FROM pet_events WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PetEvent{}, ErrNotFound
	}
	if err != nil {
		return model.PetEvent{}, fmt.Errorf("loading event %d: %w", id, err)
	}
	return row.toModel(), nil
}

func (s *sqliteStore) EventsStartingBetween(ctx context.Context, from, to time.Time, status model.EventStatus) ([]model.PetEvent, error) {
	return s.selectEvents(ctx,
		`SELECT `+eventCols+` FROM pet_events WHERE status = ? AND starts_at >= ? AND starts_at < ? ORDER BY id`,
		string(status), from.UnixMilli(), to.UnixMilli())
}

func (s *sqliteStore) EventsDueBetween(ctx context.Context, from, to time.Time) ([]model.PetEvent, error) {
	return s.selectEvents(ctx,
		`SELECT `+eventCols+` FROM pet_events WHERE next_date IS NOT NULL AND next_date >= ? AND next_date < ? ORDER BY id`,
		from.UnixMilli(), to.UnixMilli())
}

func (s *sqliteStore) selectEvents(ctx context.Context, q string, args ...any) ([]model.PetEvent, error) {
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	out := make([]model.PetEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullUser(u *model.UserID) any {
	if u == nil {
		return nil
	}
	return int64(*u)
}

func userPtr(v sql.NullInt64) *model.UserID {
	if !v.Valid {
		return nil
	}
	u := model.UserID(v.Int64)
	return &u
}
