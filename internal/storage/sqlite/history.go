package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voxdeck/voxdeck/internal/speech"
	"github.com/voxdeck/voxdeck/pkg/logger"
)

// Import logger functions
var (
	String = logger.String
	Error  = logger.Error
)

// HistoryRecord represents one completed transcription in the database
type HistoryRecord struct {
	ID             int64     `json:"id"`
	FileName       string    `json:"file_name"`
	Transcription  string    `json:"transcription"`
	Language       string    `json:"language,omitempty"`
	Confidence     float64   `json:"confidence"`
	Duration       float64   `json:"duration"`
	Model          string    `json:"model,omitempty"`
	ResponseFormat string    `json:"response_format,omitempty"`
	Success        bool      `json:"success"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// HistoryStorage persists transcription history in SQLite
type HistoryStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewHistoryStorage creates a new SQLite history storage at the given path
func NewHistoryStorage(dbPath string, log *logger.Logger) (*HistoryStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := &HistoryStorage{
		db:     db,
		logger: log.Named("sqlite-history"),
	}

	if err := storage.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// initDB initializes the database tables
func (s *HistoryStorage) initDB() error {
	// Create history table
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_name TEXT NOT NULL,
			transcription TEXT NOT NULL,
			language TEXT,
			confidence REAL,
			duration REAL,
			model TEXT,
			response_format TEXT,
			success BOOLEAN NOT NULL,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}

	// Create indexes
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}

	return nil
}

// SaveTranscription stores one completed transcription and returns its id
func (s *HistoryStorage) SaveTranscription(fileName string, resp *speech.TranscriptionResponse) (int64, error) {
	if resp == nil {
		return 0, fmt.Errorf("transcription response is required")
	}

	// Insert record
	result, err := s.db.Exec(
		`INSERT INTO history
		(file_name, transcription, language, confidence, duration, model, response_format, success, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fileName,
		resp.Transcription,
		resp.Language,
		resp.Confidence,
		resp.Duration,
		resp.Model,
		resp.ResponseFormat,
		resp.Success,
		resp.ErrorMessage,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert history record: %w", err)
	}

	// Get ID
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	s.logger.Debug("Saved transcription to history",
		String("file_name", fileName),
		logger.Int64("id", id))

	return id, nil
}

// GetTranscriptions returns history records, newest first, with pagination
func (s *HistoryStorage) GetTranscriptions(limit, offset int) ([]*HistoryRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, file_name, transcription, language, confidence, duration, model, response_format, success, error_message, created_at
		FROM history
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	// Parse records
	var records []*HistoryRecord
	for rows.Next() {
		var record HistoryRecord
		var createdAt string
		var language, model, responseFormat, errorMessage sql.NullString
		var confidence, duration sql.NullFloat64

		if err := rows.Scan(
			&record.ID,
			&record.FileName,
			&record.Transcription,
			&language,
			&confidence,
			&duration,
			&model,
			&responseFormat,
			&record.Success,
			&errorMessage,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}

		// Parse created_at
		record.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		// Handle nullable fields
		if language.Valid {
			record.Language = language.String
		}
		if model.Valid {
			record.Model = model.String
		}
		if responseFormat.Valid {
			record.ResponseFormat = responseFormat.String
		}
		if errorMessage.Valid {
			record.ErrorMessage = errorMessage.String
		}
		if confidence.Valid {
			record.Confidence = confidence.Float64
		}
		if duration.Valid {
			record.Duration = duration.Float64
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history records: %w", err)
	}

	return records, nil
}

// GetDB returns the underlying database handle so other storages can share it
func (s *HistoryStorage) GetDB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *HistoryStorage) Close() error {
	return s.db.Close()
}
