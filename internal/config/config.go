package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv, AppPort, BaseURL string
	DBDSN                    string
	RedisAddr                string
	RedisDB                  int
	SessionCookieName        string
	SessionCookieSecret      string

	GoogleClientID, GoogleClientSecret, GoogleRedirectURL string
	OAuthAllowedDomains                                   []string
	CORSOrigins                                           []string

	TesseractPath string
	OCRLang       string
	CharWhitelist string
	PageSegMode   int
	EngineMode    int

	DocPatterns []string

	SectionSizePct int
	OverlapPct     int
	Workers        int
	EnhanceRetry   bool
	WriteReports   bool

	VisionKey        string
	VisionModel      string
	VisionRPS        int
	VisionBurst      int
	VisionMaxRetries int

	StorageDir string
	ResultsDir string

	DocIDCacheTTL time.Duration

	MaxBodyLimit       int
	AllowedMaxFileSize int
	AllowedFileExt     []string
}

func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppEnv:              get("APP_ENV", "dev"),
		AppPort:             get("APP_PORT", "8080"),
		BaseURL:             get("APP_BASE_URL", "http://localhost:8080"),
		DBDSN:               must("DB_DSN"),
		RedisAddr:           get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisDB:             atoi(get("REDIS_DB", "0")),
		SessionCookieName:   get("SESSION_COOKIE_NAME", "docid_sid"),
		SessionCookieSecret: must("SESSION_COOKIE_SECRET"),
		CORSOrigins:         split(get("CORS_ORIGINS", "http://localhost:5173")),
		GoogleClientID:      must("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:  must("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:   must("GOOGLE_REDIRECT_URL"),
		OAuthAllowedDomains: split(get("OAUTH_ALLOWED_DOMAINS", "")),

		TesseractPath: get("TESSERACT_PATH", ""),
		OCRLang:       get("OCR_LANG", "eng"),
		CharWhitelist: get("OCR_CHAR_WHITELIST", DefaultWhitelist),
		PageSegMode:   atoi(get("OCR_PSM", "6")),
		EngineMode:    atoi(get("OCR_OEM", "3")),

		DocPatterns: split(get("DOC_PATTERNS", "")),

		SectionSizePct: atoi(get("SECTION_SIZE_PCT", "70")),
		OverlapPct:     atoi(get("OVERLAP_PCT", "30")),
		Workers:        atoi(get("OCR_WORKERS", "4")),
		EnhanceRetry:   parseBool(get("ENHANCE_RETRY", "true")),
		WriteReports:   parseBool(get("WRITE_REPORTS", "true")),

		VisionKey:        get("VISION_API_KEY", ""),
		VisionModel:      get("VISION_MODEL", "gpt-4o-mini"),
		VisionRPS:        atoi(get("VISION_RPS", "2")),
		VisionBurst:      atoi(get("VISION_BURST", "2")),
		VisionMaxRetries: atoi(get("VISION_MAX_RETRIES", "3")),

		StorageDir: get("STORAGE_DIR", "./storage/scans"),
		ResultsDir: get("RESULTS_DIR", "./storage/results"),

		DocIDCacheTTL: mustDuration(get("DOCID_CACHE_TTL", "168h")),

		MaxBodyLimit:       GetEnvInt("MAX_BODY_LIMIT_MB", 64),
		AllowedMaxFileSize: GetEnvInt("ALLOWED_MAX_FILE_SIZE", 48),
		AllowedFileExt:     GetEnvList("ALLOWED_FILE_EXT", []string{".tif", ".tiff", ".png", ".jpg", ".jpeg"}),
	}
	return c
}

// DefaultWhitelist keeps Tesseract on digits, the A marker and dashes,
// which is all a Hollerith doc number may contain.
const DefaultWhitelist = "0123456789A-"

func GetEnvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

func GetEnvList(k string, d []string) []string {
	if v := os.Getenv(k); v != "" {
		return strings.Split(v, ",")
	}
	return d
}

func get(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing env %s", k)
	}
	return v
}
func atoi(s string) int                   { i, _ := strconv.Atoi(s); return i }
func parseBool(s string) bool             { b, _ := strconv.ParseBool(s); return b }
func mustDuration(s string) time.Duration { d, _ := time.ParseDuration(s); return d }
func split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func GetEnv(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}
