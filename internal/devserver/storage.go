package devserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"voicetriage/internal/domain"
	"voicetriage/pkg/logger"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("not found")

// createdAtLayout mirrors the backend's naive datetime text.
const createdAtLayout = "2006-01-02 15:04:05.000000"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var voicemailColumns = []string{"id", "status", "urgency", "category", "transcript", "analysis", "file_path", "created_at"}

// Storage persists voicemails and their audio in SQLite.
type Storage struct {
	db     *sql.DB
	logger *logger.Logger
}

// OpenStorage opens the SQLite database at dsn and prepares the schema.
func OpenStorage(ctx context.Context, dsn string, log *logger.Logger) (*Storage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	storage, err := NewStorage(ctx, db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return storage, nil
}

// NewStorage wraps an open database.
func NewStorage(ctx context.Context, db *sql.DB, log *logger.Logger) (*Storage, error) {
	if log == nil {
		log = logger.NewNop()
	}
	storage := &Storage{
		db:     db,
		logger: log.Named("sqlite-voicemails"),
	}
	if err := storage.initDB(ctx); err != nil {
		return nil, err
	}
	return storage, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initDB(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS voicemails (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			urgency TEXT,
			category TEXT,
			transcript TEXT,
			analysis TEXT,
			file_path TEXT NOT NULL UNIQUE,
			audio BLOB NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create voicemails table: %w", err)
	}
	return nil
}

// Insert stores a new processing record with its audio.
func (s *Storage) Insert(ctx context.Context, id, filePath string, audio []byte, createdAt time.Time) (domain.Voicemail, error) {
	raw := createdAt.UTC().Format(createdAtLayout)
	query, args, err := psql.Insert("voicemails").
		Columns("id", "status", "file_path", "audio", "created_at").
		Values(id, string(domain.StatusProcessing), filePath, audio, raw).
		ToSql()
	if err != nil {
		return domain.Voicemail{}, fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return domain.Voicemail{}, fmt.Errorf("failed to insert voicemail: %w", err)
	}

	return domain.Voicemail{
		ID:        id,
		Status:    domain.StatusProcessing,
		FilePath:  filePath,
		CreatedAt: domain.ParseTimestamp(raw),
	}, nil
}

// List returns every record in insertion order.
func (s *Storage) List(ctx context.Context) ([]domain.Voicemail, error) {
	query, args, err := psql.Select(voicemailColumns...).From("voicemails").OrderBy("seq ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query voicemails: %w", err)
	}
	defer rows.Close()

	records := []domain.Voicemail{}
	for rows.Next() {
		record, err := scanVoicemail(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate voicemails: %w", err)
	}
	return records, nil
}

// Get returns one record by id.
func (s *Storage) Get(ctx context.Context, id string) (domain.Voicemail, error) {
	query, args, err := psql.Select(voicemailColumns...).From("voicemails").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Voicemail{}, fmt.Errorf("failed to build select: %w", err)
	}
	record, err := scanVoicemail(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Voicemail{}, ErrNotFound
	}
	return record, err
}

// Audio returns the stored audio for filePath.
func (s *Storage) Audio(ctx context.Context, filePath string) ([]byte, error) {
	query, args, err := psql.Select("audio").From("voicemails").Where(sq.Eq{"file_path": filePath}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}
	var audio []byte
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&audio); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query audio: %w", err)
	}
	return audio, nil
}

// Resolve moves a record to a terminal state with its classification.
func (s *Storage) Resolve(ctx context.Context, id string, result Result) error {
	var analysis any
	if result.Analysis != nil {
		encoded, err := json.Marshal(result.Analysis)
		if err != nil {
			return fmt.Errorf("failed to encode analysis: %w", err)
		}
		analysis = string(encoded)
	}

	query, args, err := psql.Update("voicemails").
		Set("status", string(result.Status)).
		Set("urgency", nullable(string(result.Urgency))).
		Set("category", nullable(result.Category)).
		Set("transcript", nullable(result.Transcript)).
		Set("analysis", analysis).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update voicemail: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVoicemail(row rowScanner) (domain.Voicemail, error) {
	var (
		record                                  domain.Voicemail
		status, filePath, createdAt             string
		urgency, category, transcript, analysis sql.NullString
	)
	if err := row.Scan(&record.ID, &status, &urgency, &category, &transcript, &analysis, &filePath, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Voicemail{}, err
		}
		return domain.Voicemail{}, fmt.Errorf("failed to scan voicemail: %w", err)
	}

	record.Status = domain.VoicemailStatus(status)
	record.Urgency = domain.Urgency(urgency.String)
	record.Category = category.String
	record.Transcript = transcript.String
	record.FilePath = filePath
	record.CreatedAt = domain.ParseTimestamp(createdAt)
	if analysis.Valid && analysis.String != "" {
		var decoded domain.Analysis
		if err := json.Unmarshal([]byte(analysis.String), &decoded); err != nil {
			return domain.Voicemail{}, fmt.Errorf("failed to decode analysis for %s: %w", record.ID, err)
		}
		record.Analysis = &decoded
	}
	return record, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
