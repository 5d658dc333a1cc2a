package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Event records the pipeline settling on a new stable label.
type Event struct {
	ID            string    `json:"id"`
	Label         string    `json:"label"`
	ClassIndex    int       `json:"class_index"`
	RawScore      float64   `json:"raw_score"`
	Confidence    float64   `json:"confidence"`
	LowConfidence bool      `json:"low_confidence"`
	CreatedAt     time.Time `json:"created_at"`
}

// EventRepository stores recognition events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts e, filling in a missing ID or timestamp.
func (r *EventRepository) Create(e *Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	_, err := r.db.Exec(
		`INSERT INTO events (id, label, class_index, raw_score, confidence, low_confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Label, e.ClassIndex, e.RawScore, e.Confidence, e.LowConfidence, e.CreatedAt,
	)
	return err
}

// ListRecent returns up to limit events, newest first.
func (r *EventRepository) ListRecent(limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(
		`SELECT id, label, class_index, raw_score, confidence, low_confidence, created_at
		 FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var low int
		if err := rows.Scan(&e.ID, &e.Label, &e.ClassIndex, &e.RawScore, &e.Confidence, &low, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.LowConfidence = low != 0
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByLabel returns how many events each label has.
func (r *EventRepository) CountByLabel() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT label, COUNT(*) FROM events GROUP BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}
	return counts, rows.Err()
}

// Prune deletes events older than before and reports how many were removed.
func (r *EventRepository) Prune(before time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM events WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
