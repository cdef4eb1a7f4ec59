package model

import (
	"database/sql"
	"time"
)

type Operator struct {
	ID          int64     `db:"id"`
	Provider    string    `db:"provider"`
	ProviderID  string    `db:"provider_id"`
	Email       string    `db:"email"`
	Name        string    `db:"name"`
	Picture     string    `db:"picture"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	LastLoginAt time.Time `db:"last_login_at"`
	ScanQuota   int       `db:"scan_quota"`
	ScanUsed    int       `db:"scan_used"`
}

// Scan statuses. A clean run that finds no ID is unmatched, never an
// error.
const (
	ScanQueued     = "queued"
	ScanProcessing = "processing"
	ScanMatched    = "matched"
	ScanUnmatched  = "unmatched"
	ScanError      = "error"
)

type Scan struct {
	ID         int64          `db:"id"`
	OperatorID int64          `db:"operator_id"`
	BatchID    sql.NullInt64  `db:"batch_id"`
	SourceName string         `db:"source_name"`
	ImagePath  string         `db:"image_path"`
	ImageHash  string         `db:"image_hash"`
	Width      int            `db:"image_width"`
	Height     int            `db:"image_height"`
	Status     string         `db:"status"`
	DocID      sql.NullString `db:"doc_id"`
	Confidence float64        `db:"confidence"`
	Engine     string         `db:"engine"`
	Enhanced   bool           `db:"enhanced"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

type Section struct {
	ID         int64   `db:"id"`
	ScanID     int64   `db:"scan_id"`
	X          int     `db:"x"`
	Y          int     `db:"y"`
	Width      int     `db:"width"`
	Height     int     `db:"height"`
	Text       string  `db:"ocr_text"`
	DocID      string  `db:"doc_id"`
	Confidence float64 `db:"confidence"`
}

const (
	BatchRunning   = "running"
	BatchCompleted = "completed"
	BatchError     = "error"
)

type Batch struct {
	ID         int64     `db:"id"`
	OperatorID int64     `db:"operator_id"`
	Dir        string    `db:"dir"`
	Status     string    `db:"status"`
	Total      int       `db:"total"`
	Processed  int       `db:"processed"`
	Matched    int       `db:"matched"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}
