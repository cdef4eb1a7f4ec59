package scan

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffeai/docid_service/internal/model"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func TestSaveOutcome_Matched(t *testing.T) {
	db, mock := newMockDB(t)
	s := &Service{db: db}

	mock.ExpectExec(`UPDATE scans SET status=\?, doc_id=\?, confidence=\?, engine=\?, enhanced=\?, updated_at=NOW\(\) WHERE id=\?`).
		WithArgs(model.ScanMatched, "11-005000-02-1", 91.5, EngineTesseract, false, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.saveOutcome(7, Outcome{DocID: "11-005000-02-1", Engine: EngineTesseract, Confidence: 91.5})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveOutcome_Unmatched(t *testing.T) {
	db, mock := newMockDB(t)
	s := &Service{db: db}

	mock.ExpectExec(`UPDATE scans SET status=\?, doc_id=\?, confidence=\?, engine=\?, enhanced=\?, updated_at=NOW\(\) WHERE id=\?`).
		WithArgs(model.ScanUnmatched, nil, 0.0, EngineTesseract, true, int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.saveOutcome(9, Outcome{Engine: EngineTesseract, Enhanced: true})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkError(t *testing.T) {
	db, mock := newMockDB(t)
	s := &Service{db: db}

	mock.ExpectExec(`UPDATE scans SET status=\?, updated_at=NOW\(\) WHERE id=\?`).
		WithArgs(model.ScanError, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.markError(3, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSection(t *testing.T) {
	db, mock := newMockDB(t)
	s := &Service{db: db}

	mock.ExpectExec(`INSERT INTO sections`).
		WithArgs(int64(5), 0, 40, 70, 70, "raw text", "11-005000-02-1", 84.2).
		WillReturnResult(sqlmock.NewResult(1, 1))

	s.saveSection(5, SectionResult{
		X: 0, Y: 40, W: 70, H: 70,
		Text: "raw text", DocID: "11-005000-02-1", Confidence: 84.2,
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}
