package batch

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"

	"github.com/ffeai/docid_service/internal/model"
	"github.com/ffeai/docid_service/internal/telemetry"
	"github.com/ffeai/docid_service/internal/ws"
)

// Handler exposes batch runs over the API for directories the service
// host can see (mounted scanner shares).
type Handler struct {
	db   *sqlx.DB
	proc *Processor
}

func NewHandler(db *sqlx.DB, proc *Processor) *Handler {
	return &Handler{db: db, proc: proc}
}

type createBatchReq struct {
	Dir string `json:"dir"`
}

func (h *Handler) CreateBatch(c *fiber.Ctx) error {
	operatorID, _ := c.Locals("operatorID").(int64)

	var req createBatchReq
	if err := c.BodyParser(&req); err != nil || req.Dir == "" {
		return c.Status(400).SendString("dir required")
	}

	res, err := h.db.Exec(`INSERT INTO batches(operator_id,dir,status,created_at,updated_at) VALUES(?,?,?,NOW(),NOW())`,
		operatorID, req.Dir, model.BatchRunning)
	if err != nil {
		return c.Status(500).SendString("db fail")
	}
	batchID, _ := res.LastInsertId()

	go h.run(batchID, req.Dir)

	return c.JSON(fiber.Map{"id": batchID, "status": model.BatchRunning})
}

func (h *Handler) run(batchID int64, dir string) {
	log := telemetry.L().With().Int64("batch_id", batchID).Str("dir", dir).Logger()
	log.Info().Msg("batch_start")

	processed, matched := 0, 0
	proc := &Processor{Pipeline: h.proc.Pipeline, Exts: h.proc.Exts, Workers: h.proc.Workers}
	proc.OnFile = func(fr FileResult) {
		processed++
		if fr.DocID != "" {
			matched++
		}
		_, _ = h.db.Exec(`UPDATE batches SET processed=?, matched=?, updated_at=NOW() WHERE id=?`, processed, matched, batchID)
		ws.BroadcastBatchProgress(batchID, ws.BatchPayload{
			File: fr.Path, DocID: fr.DocID, Processed: processed, Matched: matched,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Hour)
	defer cancel()

	sum, err := proc.Run(ctx, dir)
	status := model.BatchCompleted
	if err != nil {
		log.Error().Err(err).Msg("batch_fail")
		status = model.BatchError
	}
	_, _ = h.db.Exec(`UPDATE batches SET status=?, total=?, processed=?, matched=?, updated_at=NOW() WHERE id=?`,
		status, sum.Total, processed, matched, batchID)
	ws.BroadcastBatchCompleted(batchID, ws.BatchPayload{Total: sum.Total, Processed: processed, Matched: matched})
	log.Info().Int("total", sum.Total).Int("matched", matched).Msg("batch_done")
}

type batchRow struct {
	ID        int64  `db:"id" json:"id"`
	Dir       string `db:"dir" json:"dir"`
	Status    string `db:"status" json:"status"`
	Total     int    `db:"total" json:"total"`
	Processed int    `db:"processed" json:"processed"`
	Matched   int    `db:"matched" json:"matched"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

func (h *Handler) ListBatches(c *fiber.Ctx) error {
	operatorID, _ := c.Locals("operatorID").(int64)

	var rows []batchRow
	if err := h.db.Select(&rows, `SELECT id,dir,status,total,processed,matched,created_at
		FROM batches WHERE operator_id=? ORDER BY id DESC`, operatorID); err != nil {
		return c.Status(500).SendString("db fail")
	}
	return c.JSON(rows)
}

func (h *Handler) GetBatch(c *fiber.Ctx) error {
	operatorID, _ := c.Locals("operatorID").(int64)
	id, _ := strconv.ParseInt(c.Params("id"), 10, 64)

	var row struct {
		batchRow
		OperatorID int64 `db:"operator_id" json:"-"`
	}
	if err := h.db.Get(&row, `SELECT id,operator_id,dir,status,total,processed,matched,created_at
		FROM batches WHERE id=?`, id); err != nil {
		return c.Status(404).SendString("not found")
	}
	if row.OperatorID != operatorID {
		return c.Status(403).SendString("forbidden")
	}
	return c.JSON(row.batchRow)
}
