package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ffeai/docid_service/internal/telemetry"
)

// Vision is the fallback reader for scans Tesseract cannot crack:
// faded stamps, handwriting over the number field. It is only wired
// in when a key is configured.
type Vision struct {
	Key, Model string
	Client     *http.Client
	Limiter    *rate.Limiter
	MaxRetries int
}

func NewVision(key, model string, rps, burst, maxRetries int) *Vision {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 2
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Vision{
		Key:        key,
		Model:      model,
		Client:     &http.Client{Timeout: 60 * time.Second},
		Limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		MaxRetries: maxRetries,
	}
}

const visionPrompt = "Read the stamped document number from this engineering drawing scan. " +
	"It looks like 11-005000-02-1 (digits, dashes, possibly a trailing letter). " +
	"Return ONLY the number, no explanation."

func (v *Vision) Read(ctx context.Context, imgB []byte, mime string) (Result, error) {
	if err := v.Limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(imgB)
	payload := map[string]any{
		"model": v.Model,
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]string{"type": "text", "text": visionPrompt},
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": dataURL, "detail": "low"}},
				},
			},
		},
		"temperature": 0.0,
		"max_tokens":  64,
	}

	b, _ := json.Marshal(payload)

	var lastErr error
	start := time.Now()
	for attempt := 0; attempt <= v.MaxRetries; attempt++ {
		if attempt > 0 {
			d := time.Duration(200*(1<<uint(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(d):
			}
		}

		// fresh request per attempt, the body reader is single use
		req, _ := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/chat/completions", bytes.NewReader(b))
		req.Header.Set("Authorization", "Bearer "+v.Key)
		req.Header.Set("Content-Type", "application/json")

		resp, err := v.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		log := telemetry.L().With().Str("reader", "vision").Logger()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var out struct {
				Choices []struct{ Message struct{ Content string } }
			}
			if err := json.Unmarshal(raw, &out); err != nil {
				return Result{Raw: string(raw)}, err
			}
			if len(out.Choices) == 0 {
				return Result{Raw: string(raw)}, errors.New("vision: empty choices")
			}
			txt := out.Choices[0].Message.Content
			log.Debug().Int("latency_ms", int(time.Since(start)/time.Millisecond)).Int("chars", len(txt)).Msg("vision_ok")
			return Result{Text: txt, Raw: string(raw)}, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			log.Warn().Int("status", resp.StatusCode).Msg("vision_429_retry")
			lastErr = errors.New("vision 429")
			continue
		}

		lastErr = errors.New("vision http " + resp.Status)
		break
	}
	return Result{}, lastErr
}
