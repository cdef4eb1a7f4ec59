package scan

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ffeai/docid_service/internal/model"
	"github.com/ffeai/docid_service/internal/telemetry"
	"github.com/ffeai/docid_service/internal/ws"
)

// Service wraps the Pipeline with persistence, caching and progress
// broadcasting for the HTTP API.
type Service struct {
	db       *sqlx.DB
	rdb      *redis.Client
	pipeline *Pipeline
	cacheTTL time.Duration
}

func NewService(db *sqlx.DB, rdb *redis.Client, pipeline *Pipeline, cacheTTL time.Duration) *Service {
	return &Service{db: db, rdb: rdb, pipeline: pipeline, cacheTTL: cacheTTL}
}

func (s *Service) ProcessAsync(scanID int64) {
	go func() {
		log := telemetry.L().With().Int64("scan_id", scanID).Logger()
		log.Info().Str("stage", "start").Msg("process_scan")

		ctx := context.Background()
		sid := strconv.FormatInt(scanID, 10)

		// lock so a double submit cannot OCR the same scan twice
		lockKey := "lock:scan:" + sid
		ok, _ := s.rdb.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if !ok {
			log.Warn().Msg("lock_exists_skip")
			return
		}
		defer s.rdb.Del(ctx, lockKey)

		var row struct {
			ImagePath string `db:"image_path"`
			Hash      string `db:"image_hash"`
		}
		if err := s.db.Get(&row, `SELECT image_path, image_hash FROM scans WHERE id=?`, scanID); err != nil {
			log.Error().Err(err).Msg("scan_not_found")
			s.markError(scanID, err)
			return
		}

		s.markProcessing(scanID)

		// same card scanned before: reuse its ID
		cacheKey := "docid:" + row.Hash
		if id, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil && strings.TrimSpace(id) != "" {
			log.Info().Str("doc_id", id).Msg("docid_cache_hit")
			s.saveOutcome(scanID, Outcome{DocID: id, Engine: EngineCache})
			ws.BroadcastScanResult(scanID, id, EngineCache, 0)
			ws.BroadcastScanCompleted(scanID)
			return
		}

		pl := *s.pipeline
		pl.OnSection = func(sec SectionResult) {
			s.saveSection(scanID, sec)
			ws.BroadcastSection(scanID, ws.SectionPayload{
				X: sec.X, Y: sec.Y, DocID: sec.DocID, Confidence: sec.Confidence,
			})
		}

		runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()
		out, err := pl.Run(runCtx, row.ImagePath)
		if err != nil {
			log.Error().Err(err).Msg("pipeline_fail")
			s.markError(scanID, err)
			ws.BroadcastScanError(scanID, err)
			return
		}

		log.Info().Str("doc_id", out.DocID).Str("engine", out.Engine).Float64("confidence", out.Confidence).Msg("pipeline_done")
		s.saveOutcome(scanID, out)
		ws.BroadcastScanResult(scanID, out.DocID, out.Engine, out.Confidence)

		if out.DocID != "" && s.cacheTTL > 0 {
			if err := s.rdb.Set(ctx, cacheKey, out.DocID, s.cacheTTL).Err(); err != nil {
				log.Warn().Err(err).Msg("docid_cache_set_err")
			}
		}

		s.notifyCompleted(scanID)
		log.Info().Str("stage", "completed").Msg("process_scan")
	}()
}

// notifyCompleted waits briefly for a late-joining dashboard before
// the final broadcast.
func (s *Service) notifyCompleted(scanID int64) {
	go func() {
		for i := 0; i < 30; i++ {
			if ws.HasSubscribers(scanID) {
				ws.BroadcastScanCompleted(scanID)
				return
			}
			time.Sleep(1 * time.Second)
		}
		ws.BroadcastScanCompleted(scanID)
	}()
}

func (s *Service) markProcessing(scanID int64) {
	_, _ = s.db.Exec(`UPDATE scans SET status=?, updated_at=NOW() WHERE id=?`, model.ScanProcessing, scanID)
}

func (s *Service) markError(scanID int64, _ error) {
	_, _ = s.db.Exec(`UPDATE scans SET status=?, updated_at=NOW() WHERE id=?`, model.ScanError, scanID)
}

func (s *Service) saveSection(scanID int64, sec SectionResult) {
	_, _ = s.db.Exec(`INSERT INTO sections(scan_id,x,y,width,height,ocr_text,doc_id,confidence)
		VALUES(?,?,?,?,?,?,?,?)`,
		scanID, sec.X, sec.Y, sec.W, sec.H, sec.Text, sec.DocID, sec.Confidence)
}

func (s *Service) saveOutcome(scanID int64, out Outcome) {
	status := model.ScanUnmatched
	var docID sql.NullString
	if out.DocID != "" {
		status = model.ScanMatched
		docID = sql.NullString{String: out.DocID, Valid: true}
	}
	_, _ = s.db.Exec(`UPDATE scans SET status=?, doc_id=?, confidence=?, engine=?, enhanced=?, updated_at=NOW() WHERE id=?`,
		status, docID, out.Confidence, out.Engine, out.Enhanced, scanID)
}
