package scan

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ffeai/docid_service/internal/config"
	"github.com/ffeai/docid_service/internal/extract"
	"github.com/ffeai/docid_service/internal/img"
	"github.com/ffeai/docid_service/internal/middleware"
	"github.com/ffeai/docid_service/internal/model"
	"github.com/ffeai/docid_service/internal/ocr"
	"github.com/ffeai/docid_service/internal/quota"
	"github.com/ffeai/docid_service/internal/telemetry"
	"github.com/ffeai/docid_service/internal/ws"
)

type Handler struct {
	cfg *config.Config
	db  *sqlx.DB
	rdb *redis.Client
	svc *Service
}

// NewPipeline builds the scanner core from config; both the service
// and the CLI go through here so they extract identically.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	ex, err := extract.New(cfg.DocPatterns)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		Engine: ocr.NewEngine(ocr.EngineOpts{
			Lang:        cfg.OCRLang,
			Whitelist:   cfg.CharWhitelist,
			PageSegMode: cfg.PageSegMode,
			EngineMode:  cfg.EngineMode,
		}),
		Extractor:      ex,
		SectionSizePct: cfg.SectionSizePct,
		OverlapPct:     cfg.OverlapPct,
		Workers:        cfg.Workers,
		EnhanceRetry:   cfg.EnhanceRetry,
	}
	if cfg.VisionKey != "" {
		p.Fallback = ocr.NewVision(cfg.VisionKey, cfg.VisionModel, cfg.VisionRPS, cfg.VisionBurst, cfg.VisionMaxRetries)
	}
	if cfg.WriteReports {
		p.Reports = &ReportWriter{Dir: cfg.ResultsDir}
	}
	return p, nil
}

func NewHandler(cfg *config.Config, db *sqlx.DB, rdb *redis.Client) (*Handler, error) {
	pipeline, err := NewPipeline(cfg)
	if err != nil {
		return nil, err
	}
	svc := NewService(db, rdb, pipeline, cfg.DocIDCacheTTL)
	return &Handler{cfg: cfg, db: db, rdb: rdb, svc: svc}, nil
}

func (h *Handler) Service() *Service { return h.svc }

func (h *Handler) CreateScan(c *fiber.Ctx) error {
	operatorID := mustOperatorID(c)
	rid := c.Locals(middleware.ReqIDKey).(string)
	log := telemetry.L().With().Str("req_id", rid).Int64("operator_id", operatorID).Logger()

	var op model.Operator
	if err := h.db.Get(&op, `SELECT id, scan_quota, scan_used FROM operators WHERE id=?`, operatorID); err != nil {
		return c.Status(500).SendString("db error")
	}
	oq := quota.OperatorQuota{ScanQuota: op.ScanQuota, ScanUsed: op.ScanUsed}
	if !oq.CanScan() {
		return c.Status(403).SendString("quota exceeded")
	}

	fh, err := c.FormFile("scan")
	if err != nil {
		return c.Status(400).SendString("scan file required")
	}

	tmp := filepath.Join(os.TempDir(), uuid.New().String()+filepath.Ext(fh.Filename))
	if err := c.SaveFile(fh, tmp); err != nil {
		return c.Status(500).SendString("save fail")
	}

	stamp := time.Now().Format("2006-01")
	dst := filepath.Join(h.cfg.StorageDir, stamp)
	if err := os.MkdirAll(dst, 0755); err != nil {
		return c.Status(500).SendString("storage fail")
	}
	stored := filepath.Join(dst, uuid.New().String()+filepath.Ext(fh.Filename))
	if err := os.Rename(tmp, stored); err != nil {
		return c.Status(500).SendString("storage fail")
	}

	save, err := img.SaveArchivalJPEG(stored, dst, 1200)
	if err != nil {
		return c.Status(422).SendString("unreadable image")
	}

	res, err := h.db.Exec(`
  INSERT INTO scans
    (operator_id, source_name, image_path, image_hash, image_width, image_height, status, created_at, updated_at)
  VALUES
    (?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
`, operatorID, fh.Filename, stored, save.Hash, save.Width, save.Height, model.ScanQueued)
	if err != nil {
		return c.Status(500).SendString("db fail")
	}

	scanID, _ := res.LastInsertId()
	log.Info().Int64("scan_id", scanID).Str("file", fh.Filename).Msg("scan_created")
	ws.BroadcastScanCreated(operatorID, scanID, save.Path)

	h.svc.ProcessAsync(scanID)
	_, _ = h.db.Exec(`UPDATE operators SET scan_used=scan_used+1 WHERE id=?`, operatorID)
	return c.JSON(fiber.Map{"id": scanID, "status": model.ScanQueued, "image_path": save.Path})
}

type ScanRow struct {
	ID         int64   `db:"id" json:"id"`
	Status     string  `db:"status" json:"status"`
	SourceName string  `db:"source_name" json:"source_name"`
	DocID      *string `db:"doc_id" json:"doc_id"`
	Confidence float64 `db:"confidence" json:"confidence"`
	Engine     string  `db:"engine" json:"engine"`
	ImagePath  string  `db:"image_path" json:"image_path"`
	CreatedAt  string  `db:"created_at" json:"created_at"`
}

func (h *Handler) ListMyScans(c *fiber.Ctx) error {
	operatorID := mustOperatorID(c)

	var scans []ScanRow
	if err := h.db.Select(&scans, `
        SELECT id,status,source_name,doc_id,confidence,engine,image_path,created_at
        FROM scans
        WHERE operator_id=? ORDER BY id DESC`, operatorID); err != nil {
		return c.Status(500).SendString("db fail")
	}
	return c.JSON(scans)
}

func (h *Handler) GetScan(c *fiber.Ctx) error {
	operatorID := mustOperatorID(c)
	id, _ := strconv.ParseInt(c.Params("id"), 10, 64)

	var row struct {
		ScanRow
		OperatorID int64 `db:"operator_id" json:"-"`
	}
	if err := h.db.Get(&row, `
		SELECT id,operator_id,status,source_name,doc_id,confidence,engine,image_path,created_at
		FROM scans WHERE id=?`, id); err != nil {
		return c.Status(404).SendString("not found")
	}
	if row.OperatorID != operatorID {
		return c.Status(403).SendString("forbidden")
	}
	return c.JSON(row.ScanRow)
}

type SectionRow struct {
	X          int     `db:"x" json:"x"`
	Y          int     `db:"y" json:"y"`
	Width      int     `db:"width" json:"width"`
	Height     int     `db:"height" json:"height"`
	DocID      string  `db:"doc_id" json:"doc_id"`
	Confidence float64 `db:"confidence" json:"confidence"`
}

func (h *Handler) ListSections(c *fiber.Ctx) error {
	operatorID := mustOperatorID(c)
	id, _ := strconv.ParseInt(c.Params("id"), 10, 64)

	var owner int64
	if err := h.db.Get(&owner, `SELECT operator_id FROM scans WHERE id=?`, id); err != nil {
		return c.Status(404).SendString("not found")
	}
	if owner != operatorID {
		return c.Status(403).SendString("forbidden")
	}

	var rows []SectionRow
	_ = h.db.Select(&rows, `SELECT x,y,width,height,doc_id,confidence FROM sections WHERE scan_id=? ORDER BY id ASC`, id)
	return c.JSON(rows)
}

func mustOperatorID(c *fiber.Ctx) int64 {
	uid, ok := c.Locals("operatorID").(int64)
	if !ok {
		return 0
	}
	return uid
}
