package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/bryan-buckman/newsreel/internal/model"
)

const (
	keySeen    = model.KeySeenArticles
	keyLastRun = model.KeyLastRun

	upsertState = "ON CONFLICT (key) DO UPDATE SET value = excluded.value, version = app_state.version + 1, updated_at = excluded.updated_at"
	upsertToken = "ON CONFLICT (channel_label) DO UPDATE SET refresh_token = excluded.refresh_token, updated_at = excluded.updated_at"
)

// seenDocument is the stored shape of the seen map.
type seenDocument struct {
	SchemaVersion int           `json:"schemaVersion"`
	Articles      model.SeenMap `json:"articles"`
}

// stateStore implements the run state operations shared by both backends.
// Only placeholder style differs between SQLite and PostgreSQL.
type stateStore struct {
	conn *sql.DB
	sb   sq.StatementBuilderType
	now  func() time.Time
}

func newStateStore(conn *sql.DB, placeholder sq.PlaceholderFormat) *stateStore {
	return &stateStore{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:  time.Now,
	}
}

// --- Generic JSON Methods ---

// GetJSON decodes the document stored under key into dest.
func (s *stateStore) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, found, err := s.getRaw(ctx, key)
	if err != nil || !found {
		return found, err
	}
	if err := validateDocument(key, raw); err != nil {
		return false, &PersistenceError{Op: "get " + key, Cause: err}
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, &PersistenceError{Op: "decode " + key, Cause: err}
	}
	return true, nil
}

// SetJSON stores value under key, replacing any previous document.
func (s *stateStore) SetJSON(ctx context.Context, key string, value any) error {
	raw, err := encodeDocument(key, value)
	if err != nil {
		return &PersistenceError{Op: "set " + key, Cause: err}
	}
	query, args, err := s.sb.Insert("app_state").
		Columns("key", "value", "version", "updated_at").
		Values(key, string(raw), 1, s.now().UTC()).
		Suffix(upsertState).
		ToSql()
	if err != nil {
		return &PersistenceError{Op: "set " + key, Cause: err}
	}
	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return &PersistenceError{Op: "set " + key, Cause: err}
	}
	return nil
}

// --- Run State Methods ---

// LoadState reads the seen map and last run record together.
func (s *stateStore) LoadState(ctx context.Context) (*model.RunState, error) {
	query, args, err := s.sb.Select("key", "value", "version").
		From("app_state").
		Where(sq.Eq{"key": []string{keySeen, keyLastRun}}).
		ToSql()
	if err != nil {
		return nil, &PersistenceError{Op: "load state", Cause: err}
	}
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &PersistenceError{Op: "load state", Cause: err}
	}
	defer rows.Close()

	state := &model.RunState{Seen: model.SeenMap{}, LastRun: model.EmptyRunRecord()}
	for rows.Next() {
		var (
			key, value string
			version    int64
		)
		if err := rows.Scan(&key, &value, &version); err != nil {
			return nil, &PersistenceError{Op: "load state", Cause: err}
		}
		switch key {
		case keySeen:
			seen, err := decodeSeen([]byte(value))
			if err != nil {
				return nil, &PersistenceError{Op: "load " + keySeen, Cause: err}
			}
			state.Seen = seen
		case keyLastRun:
			run, err := decodeRun([]byte(value))
			if err != nil {
				return nil, &PersistenceError{Op: "load " + keyLastRun, Cause: err}
			}
			state.LastRun = run
			state.Version = version
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "load state", Cause: err}
	}
	return state, nil
}

// SaveState persists the seen map and run record in one transaction. The run
// record row acts as the version token: the write only applies when the stored
// version still equals state.Version.
func (s *stateStore) SaveState(ctx context.Context, state *model.RunState) error {
	if state == nil {
		return &PersistenceError{Op: "save state", Cause: errors.New("nil state")}
	}
	seen := state.Seen
	if seen == nil {
		seen = model.SeenMap{}
	}
	seenRaw, err := encodeDocument(keySeen, seenDocument{SchemaVersion: model.SchemaVersion, Articles: seen})
	if err != nil {
		return &PersistenceError{Op: "save " + keySeen, Cause: err}
	}
	runRaw, err := encodeDocument(keyLastRun, normalizeRun(state.LastRun))
	if err != nil {
		return &PersistenceError{Op: "save " + keyLastRun, Cause: err}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "save state", Cause: err}
	}
	defer tx.Rollback()

	now := s.now().UTC()
	if err := s.swapRun(ctx, tx, string(runRaw), state.Version, now); err != nil {
		return &PersistenceError{Op: "save " + keyLastRun, Cause: err}
	}

	query, args, err := s.sb.Insert("app_state").
		Columns("key", "value", "version", "updated_at").
		Values(keySeen, string(seenRaw), 1, now).
		Suffix(upsertState).
		ToSql()
	if err != nil {
		return &PersistenceError{Op: "save " + keySeen, Cause: err}
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return &PersistenceError{Op: "save " + keySeen, Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "save state", Cause: err}
	}
	state.Version++
	return nil
}

func (s *stateStore) swapRun(ctx context.Context, tx *sql.Tx, value string, expected int64, now time.Time) error {
	var (
		query string
		args  []any
		err   error
	)
	if expected == 0 {
		query, args, err = s.sb.Insert("app_state").
			Columns("key", "value", "version", "updated_at").
			Values(keyLastRun, value, 1, now).
			Suffix("ON CONFLICT (key) DO NOTHING").
			ToSql()
	} else {
		query, args, err = s.sb.Update("app_state").
			Set("value", value).
			Set("version", sq.Expr("version + 1")).
			Set("updated_at", now).
			Where(sq.Eq{"key": keyLastRun, "version": expected}).
			ToSql()
	}
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return ErrStateConflict
	}
	return nil
}

// LastRun returns the persisted run record, or an empty record if none exists.
func (s *stateStore) LastRun(ctx context.Context) (model.RunRecord, error) {
	raw, found, err := s.getRaw(ctx, keyLastRun)
	if err != nil {
		return model.EmptyRunRecord(), err
	}
	if !found {
		return model.EmptyRunRecord(), nil
	}
	run, err := decodeRun(raw)
	if err != nil {
		return model.EmptyRunRecord(), &PersistenceError{Op: "load " + keyLastRun, Cause: err}
	}
	return run, nil
}

// SeenArticles returns the persisted seen map.
func (s *stateStore) SeenArticles(ctx context.Context) (model.SeenMap, error) {
	raw, found, err := s.getRaw(ctx, keySeen)
	if err != nil {
		return nil, err
	}
	if !found {
		return model.SeenMap{}, nil
	}
	seen, err := decodeSeen(raw)
	if err != nil {
		return nil, &PersistenceError{Op: "load " + keySeen, Cause: err}
	}
	return seen, nil
}

// --- Credential Methods ---

// RefreshToken returns the stored OAuth refresh token for a channel.
func (s *stateStore) RefreshToken(ctx context.Context, channel model.ChannelID) (string, bool, error) {
	query, args, err := s.sb.Select("refresh_token").
		From("oauth_tokens").
		Where(sq.Eq{"channel_label": string(channel)}).
		ToSql()
	if err != nil {
		return "", false, &PersistenceError{Op: "get refresh token", Cause: err}
	}
	var token string
	err = s.conn.QueryRowContext(ctx, query, args...).Scan(&token)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, &PersistenceError{Op: "get refresh token", Cause: err}
	}
	return token, token != "", nil
}

// SetRefreshToken saves the OAuth refresh token for a channel.
func (s *stateStore) SetRefreshToken(ctx context.Context, channel model.ChannelID, token string) error {
	query, args, err := s.sb.Insert("oauth_tokens").
		Columns("channel_label", "refresh_token", "updated_at").
		Values(string(channel), token, s.now().UTC()).
		Suffix(upsertToken).
		ToSql()
	if err != nil {
		return &PersistenceError{Op: "set refresh token", Cause: err}
	}
	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return &PersistenceError{Op: "set refresh token", Cause: err}
	}
	return nil
}

// --- Helpers ---

func (s *stateStore) getRaw(ctx context.Context, key string) ([]byte, bool, error) {
	query, args, err := s.sb.Select("value").
		From("app_state").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return nil, false, &PersistenceError{Op: "get " + key, Cause: err}
	}
	var value string
	err = s.conn.QueryRowContext(ctx, query, args...).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &PersistenceError{Op: "get " + key, Cause: err}
	}
	return []byte(value), true, nil
}

func encodeDocument(key string, value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	if err := validateDocument(key, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func decodeSeen(raw []byte) (model.SeenMap, error) {
	if err := validateDocument(keySeen, raw); err != nil {
		return nil, err
	}
	var doc seenDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Articles == nil {
		doc.Articles = model.SeenMap{}
	}
	return doc.Articles, nil
}

func decodeRun(raw []byte) (model.RunRecord, error) {
	if err := validateDocument(keyLastRun, raw); err != nil {
		return model.RunRecord{}, err
	}
	var run model.RunRecord
	if err := json.Unmarshal(raw, &run); err != nil {
		return model.RunRecord{}, err
	}
	return normalizeRun(run), nil
}

func normalizeRun(run model.RunRecord) model.RunRecord {
	if run.SchemaVersion == 0 {
		run.SchemaVersion = model.SchemaVersion
	}
	if run.Items == nil {
		run.Items = []model.ItemOutcome{}
	}
	return run
}
