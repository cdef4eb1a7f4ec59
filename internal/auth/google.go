package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ffeai/docid_service/internal/config"
	"github.com/ffeai/docid_service/internal/middleware"
	"github.com/ffeai/docid_service/internal/telemetry"
)

const sessionTTL = 7 * 24 * time.Hour

type Registry struct {
	cfg   *config.Config
	db    *sqlx.DB
	rdb   *redis.Client
	oauth *oauth2.Config
}

func (r *Registry) Rdb() *redis.Client {
	return r.rdb
}

func (r *Registry) CookieName() string {
	return r.cfg.SessionCookieName
}

func NewRegistry(cfg *config.Config, db *sqlx.DB, rdb *redis.Client) *Registry {
	return &Registry{
		cfg: cfg, db: db, rdb: rdb,
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

func (r *Registry) Logout(c *fiber.Ctx) error {
	sid := c.Cookies(r.cfg.SessionCookieName)
	if sid != "" {
		r.rdb.Del(c.Context(), "sess:"+sid)
		c.ClearCookie(r.cfg.SessionCookieName)
	}
	return c.SendString("ok")
}

func (r *Registry) Me(c *fiber.Ctx) error {
	oid := c.Locals("operatorID").(int64)
	var op struct {
		ID        int64     `db:"id" json:"id"`
		Email     string    `db:"email" json:"email"`
		Name      string    `db:"name" json:"name"`
		Picture   string    `db:"picture" json:"picture"`
		ScanQuota int       `db:"scan_quota" json:"scan_quota"`
		ScanUsed  int       `db:"scan_used" json:"scan_used"`
		CreatedAt time.Time `db:"created_at" json:"created_at"`
	}
	err := r.db.Get(&op, `SELECT id, email, name, picture, scan_quota, scan_used, created_at FROM operators WHERE id=? LIMIT 1`, oid)
	if err != nil {
		return c.Status(500).SendString("db error")
	}
	return c.JSON(op)
}

func (r *Registry) GoogleLogin(c *fiber.Ctx) error {
	log := telemetry.L()
	log.Info().
		Str("req_id", c.Locals(middleware.ReqIDKey).(string)).
		Msg("google_login_redirect")
	state := randomHex(16)
	c.Cookie(&fiber.Cookie{Name: "oauth_state", Value: state, HTTPOnly: true, Secure: false, SameSite: "Lax"})
	url := r.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
	return c.Redirect(url, http.StatusFound)
}

func (r *Registry) GoogleCallback(c *fiber.Ctx) error {
	rid := c.Locals(middleware.ReqIDKey).(string)
	state := c.Cookies("oauth_state")
	log := telemetry.L().With().Str("req_id", rid).Logger()
	if state == "" || state != c.Query("state") {
		log.Warn().Msg("oauth_state_mismatch")
		return c.Status(400).SendString("bad state")
	}
	tok, err := r.oauth.Exchange(context.Background(), c.Query("code"))
	if err != nil {
		log.Error().Err(err).Msg("oauth_exchange_failed")
		return c.Status(400).SendString("exchange failed")
	}

	ui, err := fetchGoogleUserinfo(tok.AccessToken)
	if err != nil {
		log.Error().Err(err).Msg("oauth_userinfo_failed")
		return c.Status(502).SendString("userinfo failed")
	}

	if len(r.cfg.OAuthAllowedDomains) > 0 {
		ok := false
		for _, d := range r.cfg.OAuthAllowedDomains {
			if strings.HasSuffix(strings.ToLower(ui.Email), "@"+strings.ToLower(d)) {
				ok = true
				break
			}
		}
		if !ok {
			return c.Status(403).SendString("domain not allowed")
		}
	}

	log.Info().
		Str("email", ui.Email).
		Str("sub", ui.Sub).
		Msg("login_userinfo")

	operatorID := upsertOperator(r.db, ui)
	log.Info().Int64("operator_id", operatorID).Msg("operator_upserted")
	sessID := randomHex(16)
	saveSessionDB(r.db, sessID, operatorID, c.IP(), string(c.Request().Header.UserAgent()))

	ctx := context.Background()
	r.rdb.Set(ctx, "sess:"+sessID, operatorID, sessionTTL)

	c.Cookie(&fiber.Cookie{
		Name: r.cfg.SessionCookieName, Value: sessID, HTTPOnly: true, SameSite: "Lax", Secure: false, MaxAge: int(sessionTTL.Seconds()),
	})
	redir := c.Query("redirect")
	if redir == "" {
		// fallback
		redir = os.Getenv("CLIENT_URL") + "/login"
	}
	return c.Redirect(redir, http.StatusFound)
}

func randomHex(n int) string { b := make([]byte, n); rand.Read(b); return hex.EncodeToString(b) }

type googleUserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func fetchGoogleUserinfo(accessToken string) (*googleUserInfo, error) {
	req, _ := http.NewRequest("GET",
		"https://www.googleapis.com/oauth2/v3/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var ui googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&ui); err != nil {
		return nil, err
	}
	return &ui, nil
}

func upsertOperator(db *sqlx.DB, ui *googleUserInfo) int64 {
	log := telemetry.L().With().Str("email", ui.Email).Str("sub", ui.Sub).Logger()
	res, err := db.Exec(`
		INSERT INTO operators (provider, provider_id, email, name, picture, last_login_at, created_at, updated_at)
		VALUES ('google', ?, ?, ?, ?, NOW(), NOW(), NOW())
		ON DUPLICATE KEY UPDATE
			email = VALUES(email),
			name = VALUES(name),
			picture = VALUES(picture),
			last_login_at = NOW(),
			updated_at = NOW(),
			-- LAST_INSERT_ID(id) so LastInsertId() also works on the update path
			id = LAST_INSERT_ID(id)
	`, ui.Sub, ui.Email, ui.Name, ui.Picture)
	if err != nil {
		log.Fatal().Err(err).Msg("upsertOperator failed")
	}

	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		var fetched int64
		if e := db.Get(&fetched, `SELECT id FROM operators WHERE provider='google' AND provider_id=? LIMIT 1`, ui.Sub); e != nil {
			log.Fatal().Err(e).Msg("fetch operator id failed")
		}
		return fetched
	}
	return id
}

func saveSessionDB(db *sqlx.DB, sid string, operatorID int64, ip, ua string) {
	_, err := db.Exec(`INSERT INTO sessions(id,operator_id,ip,user_agent) VALUES(?,?,?,?)`,
		sid, operatorID, ip, ua)
	if err != nil {
		log := telemetry.L().With().Int64("operator_id", operatorID).Str("session_id", sid).Logger()
		log.Error().Err(err).Msg("saveSessionDB failed")
	}
}
