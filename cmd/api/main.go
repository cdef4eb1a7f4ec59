package main

import (
	"flag"
	"log"
	"runtime"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/ffeai/docid_service/internal/auth"
	"github.com/ffeai/docid_service/internal/batch"
	"github.com/ffeai/docid_service/internal/cache"
	"github.com/ffeai/docid_service/internal/config"
	"github.com/ffeai/docid_service/internal/db"
	"github.com/ffeai/docid_service/internal/middleware"
	"github.com/ffeai/docid_service/internal/ocr"
	"github.com/ffeai/docid_service/internal/scan"
	"github.com/ffeai/docid_service/internal/telemetry"
	"github.com/ffeai/docid_service/internal/ws"
)

func main() {
	doMigrate := flag.Bool("migrate", false, "run migrations and exit")
	flag.Parse()

	cfg := config.Load()
	sqlxDB := db.MustConnect(cfg.DBDSN)
	rdb := cache.MustConnect(cfg.RedisAddr, cfg.RedisDB)

	tlog := telemetry.Init(telemetry.FromEnv(config.GetEnv))
	tlog.Info().Str("port", cfg.AppPort).Msg("booting docid_service")

	if st := ocr.Check(cfg.TesseractPath); st.OK {
		tlog.Info().Str("path", st.Path).Str("version", st.Version).Msg("tesseract found")
	} else {
		hint, _ := ocr.InstallHint(runtime.GOOS)
		tlog.Warn().Str("install", hint).Msg("tesseract not found, scans will fail")
	}

	if *doMigrate {
		db.MustMigrate(sqlxDB)
		log.Println("migrations done")
		return
	}

	app := fiber.New()

	app.Use(middleware.RateLimiter())
	app.Use(middleware.RequestID())
	app.Use(middleware.Recover())
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.RequestLog())
	app.Use(middleware.SecureHeaders())

	authReg := auth.NewRegistry(cfg, sqlxDB, rdb)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Static("/storage", "./storage")
	app.Get("/api/v1/auth/google/login", authReg.GoogleLogin)
	app.Get("/api/v1/auth/google/callback", authReg.GoogleCallback)

	sh, err := scan.NewHandler(cfg, sqlxDB, rdb)
	if err != nil {
		tlog.Fatal().Err(err).Msg("scan handler init failed")
	}
	pipeline, err := scan.NewPipeline(cfg)
	if err != nil {
		tlog.Fatal().Err(err).Msg("pipeline init failed")
	}
	bh := batch.NewHandler(sqlxDB, &batch.Processor{
		Pipeline: pipeline,
		Workers:  cfg.Workers,
	})

	protected := app.Group("/api/v1", middleware.AuthSession(authReg))

	protected.Post("/auth/logout", authReg.Logout)
	protected.Get("/me", authReg.Me)

	protected.Post("/scans", middleware.FileUploadValidator(cfg), sh.CreateScan)
	protected.Get("/scans", sh.ListMyScans)
	protected.Get("/scans/:id", sh.GetScan)
	protected.Get("/scans/:id/sections", sh.ListSections)

	protected.Post("/batches", bh.CreateBatch)
	protected.Get("/batches", bh.ListBatches)
	protected.Get("/batches/:id", bh.GetBatch)

	app.Get("/ws", websocket.New(ws.HandleWS))

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
