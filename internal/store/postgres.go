package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/thunder-dashboard/backend/internal/models"
)

// ErrNotFound is returned when a row does not exist or belongs to another user.
var ErrNotFound = errors.New("not found")

// ChangeChannel is the NOTIFY channel the change triggers publish on.
const ChangeChannel = "thunder_changes"

// PostgresStore handles users and dashboard records against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables and change triggers if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username   VARCHAR(50)  UNIQUE NOT NULL,
			email      VARCHAR(255) UNIQUE NOT NULL,
			password   VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ  DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS subjects (
			subject_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS sources (
			source_id     UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id       UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			subject_id    UUID NOT NULL REFERENCES subjects(subject_id) ON DELETE CASCADE,
			kind          TEXT NOT NULL DEFAULT 'textbook',
			title         TEXT NOT NULL,
			gcs_pdf_url   TEXT NOT NULL,
			ingest_status TEXT NOT NULL DEFAULT 'queued',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS sessions (
			session_id    UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id       UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			subject_id    UUID NOT NULL REFERENCES subjects(subject_id) ON DELETE CASCADE,
			title         TEXT NOT NULL DEFAULT '',
			exam_window   TEXT NOT NULL DEFAULT 'midterm',
			gcs_audio_url TEXT NOT NULL,
			status        TEXT NOT NULL DEFAULT 'queued',
			logs          JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS audio_chunks (
			chunk_id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			session_id       UUID NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
			chunk_index      INT NOT NULL,
			gcs_chunk_url    TEXT NOT NULL DEFAULT '',
			start_offset_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
			duration_sec     DOUBLE PRECISION NOT NULL DEFAULT 0,
			status           TEXT NOT NULL DEFAULT 'pending',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS audio_chunks_session_idx ON audio_chunks (session_id);

		-- identifiers only; pg_notify rejects payloads of 8000 bytes or more
		CREATE OR REPLACE FUNCTION thunder_notify_change() RETURNS trigger AS $$
		DECLARE
			r jsonb;
		BEGIN
			IF TG_OP = 'DELETE' THEN
				r := to_jsonb(OLD);
			ELSE
				r := to_jsonb(NEW);
			END IF;
			PERFORM pg_notify('`+ChangeChannel+`', json_build_object(
				'table', TG_TABLE_NAME,
				'type', TG_OP,
				'id', CASE TG_TABLE_NAME
					WHEN 'sources' THEN r->>'source_id'
					WHEN 'sessions' THEN r->>'session_id'
					ELSE r->>'chunk_id'
				END,
				'subject_id', r->>'subject_id',
				'session_id', r->>'session_id'
			)::text);
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql;

		DROP TRIGGER IF EXISTS sources_notify ON sources;
		CREATE TRIGGER sources_notify AFTER INSERT OR UPDATE OR DELETE ON sources
			FOR EACH ROW EXECUTE FUNCTION thunder_notify_change();

		DROP TRIGGER IF EXISTS sessions_notify ON sessions;
		CREATE TRIGGER sessions_notify AFTER INSERT OR UPDATE OR DELETE ON sessions
			FOR EACH ROW EXECUTE FUNCTION thunder_notify_change();

		DROP TRIGGER IF EXISTS audio_chunks_notify ON audio_chunks;
		CREATE TRIGGER audio_chunks_notify AFTER INSERT OR UPDATE OR DELETE ON audio_chunks
			FOR EACH ROW EXECUTE FUNCTION thunder_notify_change();
	`)
	return err
}

func (s *PostgresStore) CreateUser(ctx context.Context, username, email, hashedPassword string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password)
		 VALUES ($1, $2, $3)
		 RETURNING id, username, email, created_at`,
		username, email, hashedPassword,
	).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, password, created_at FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// ── Subjects ────────────────────────────────────────────────

func (s *PostgresStore) CreateSubject(ctx context.Context, userID, name string) (*models.Subject, error) {
	sub := models.Subject{UserID: userID, Name: name}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO subjects (user_id, name) VALUES ($1, $2)
		 RETURNING subject_id::text, created_at`,
		userID, name,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create subject: %w", err)
	}
	return &sub, nil
}

func (s *PostgresStore) ListSubjects(ctx context.Context, userID string) ([]models.Subject, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT subject_id::text, user_id::text, name, created_at
		 FROM subjects WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Subject, error) {
		var sub models.Subject
		err := row.Scan(&sub.ID, &sub.UserID, &sub.Name, &sub.CreatedAt)
		return sub, err
	})
}

// GetSubject returns the subject if it belongs to userID.
func (s *PostgresStore) GetSubject(ctx context.Context, userID, subjectID string) (*models.Subject, error) {
	var sub models.Subject
	err := s.pool.QueryRow(ctx,
		`SELECT subject_id::text, user_id::text, name, created_at
		 FROM subjects WHERE subject_id::text = $1 AND user_id = $2`, subjectID, userID,
	).Scan(&sub.ID, &sub.UserID, &sub.Name, &sub.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

// ── Sources ─────────────────────────────────────────────────

const sourceColumns = `source_id::text, user_id::text, subject_id::text, kind, title, gcs_pdf_url, ingest_status, created_at`

func scanSource(row pgx.Row) (models.Source, error) {
	var src models.Source
	err := row.Scan(&src.ID, &src.UserID, &src.SubjectID, &src.Kind, &src.Title,
		&src.StoragePath, &src.IngestStatus, &src.CreatedAt)
	return src, err
}

// CreateSource inserts src and fills in its generated id and timestamp.
func (s *PostgresStore) CreateSource(ctx context.Context, src *models.Source) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sources (user_id, subject_id, kind, title, gcs_pdf_url, ingest_status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING source_id::text, created_at`,
		src.UserID, src.SubjectID, src.Kind, src.Title, src.StoragePath, src.IngestStatus,
	).Scan(&src.ID, &src.CreatedAt)
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSources(ctx context.Context, subjectID string) ([]models.Source, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE subject_id::text = $1 ORDER BY created_at DESC`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Source, error) {
		return scanSource(row)
	})
}

func (s *PostgresStore) SourceByID(ctx context.Context, id string) (*models.Source, error) {
	src, err := scanSource(s.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE source_id::text = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &src, nil
}

// DeleteSource removes a source owned by userID and returns the deleted row.
func (s *PostgresStore) DeleteSource(ctx context.Context, userID, id string) (*models.Source, error) {
	src, err := scanSource(s.pool.QueryRow(ctx,
		`DELETE FROM sources WHERE source_id::text = $1 AND user_id = $2 RETURNING `+sourceColumns, id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &src, nil
}

// ── Sessions ────────────────────────────────────────────────

const sessionColumns = `session_id::text, user_id::text, subject_id::text, title, exam_window, gcs_audio_url, status, logs, created_at`

func scanSession(row pgx.Row) (models.Session, error) {
	var (
		ses  models.Session
		logs []byte
	)
	err := row.Scan(&ses.ID, &ses.UserID, &ses.SubjectID, &ses.Title, &ses.ExamWindow,
		&ses.AudioPath, &ses.Status, &logs, &ses.CreatedAt)
	if err != nil {
		return ses, err
	}
	if len(logs) > 0 {
		if err := json.Unmarshal(logs, &ses.Logs); err != nil {
			return ses, fmt.Errorf("decode logs of %s: %w", ses.ID, err)
		}
	}
	return ses, nil
}

// CreateSession inserts ses and fills in its generated id and timestamp.
func (s *PostgresStore) CreateSession(ctx context.Context, ses *models.Session) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (user_id, subject_id, title, exam_window, gcs_audio_url, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING session_id::text, created_at`,
		ses.UserID, ses.SubjectID, ses.Title, ses.ExamWindow, ses.AudioPath, ses.Status,
	).Scan(&ses.ID, &ses.CreatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, subjectID string) ([]models.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE subject_id::text = $1 ORDER BY created_at DESC`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Session, error) {
		return scanSession(row)
	})
}

// GetSession returns a session if it belongs to userID.
func (s *PostgresStore) GetSession(ctx context.Context, userID, id string) (*models.Session, error) {
	ses, err := scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id::text = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &ses, nil
}

// SessionByID returns a session regardless of owner. It backs the realtime
// listener, which resolves change notifications to rows.
func (s *PostgresStore) SessionByID(ctx context.Context, id string) (*models.Session, error) {
	ses, err := scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id::text = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &ses, nil
}

// CountSessions returns how many of ids belong to subjectID.
func (s *PostgresStore) CountSessions(ctx context.Context, subjectID string, ids []string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE subject_id::text = $1 AND session_id::text = ANY($2)`,
		subjectID, ids,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// DeleteSession removes a session (and its chunks) owned by userID.
func (s *PostgresStore) DeleteSession(ctx context.Context, userID, id string) (*models.Session, error) {
	ses, err := scanSession(s.pool.QueryRow(ctx,
		`DELETE FROM sessions WHERE session_id::text = $1 AND user_id = $2 RETURNING `+sessionColumns, id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &ses, nil
}

// ── Audio chunks ────────────────────────────────────────────

// ListChunks returns the chunks of all given sessions in one query.
func (s *PostgresStore) ListChunks(ctx context.Context, sessionIDs []string) ([]models.AudioChunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT chunk_id::text, session_id::text, chunk_index, start_offset_sec, duration_sec, status
		 FROM audio_chunks WHERE session_id::text = ANY($1) ORDER BY session_id, chunk_index`, sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AudioChunk, error) {
		var c models.AudioChunk
		err := row.Scan(&c.ID, &c.SessionID, &c.ChunkIndex, &c.StartOffsetSec, &c.DurationSec, &c.Status)
		return c, err
	})
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
