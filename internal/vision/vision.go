// Package vision calls the external image analysis service used to
// estimate recyclable material components for non-working items.
//
// The call is best-effort: without an API key, or on any transport or
// response failure, the client degrades to a deterministic local stub
// and records the failure reason on the result. Analysis never blocks
// or fails item submission.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/ewastehub/apiserver/config"
	"github.com/ewastehub/apiserver/internal/storage"
	"github.com/ewastehub/apiserver/types"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const maxResponseBytes = 4 << 20

// Client analyzes item photos through the configured vision endpoint.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	storage    *storage.Storage
	intake     *storage.Intake
}

// NewClient constructs a Client. storage and intake resolve stored
// image references back into bytes for upload.
func NewClient(cfg config.VisionConfig, st *storage.Storage, intake *storage.Intake) *Client {
	return &Client{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		storage:    st,
		intake:     intake,
	}
}

// Analyze returns the component analysis for a stored image reference.
// It never returns an error: with no API key configured it returns the
// local stub unconditionally, and any live-call failure falls back to
// the stub with the failure reason attached.
func (c *Client) Analyze(ctx context.Context, imagePath string) *types.Analysis {
	if strings.TrimSpace(c.apiKey) == "" {
		return stubAnalysis(imagePath)
	}

	analysis, err := c.analyzeLive(ctx, imagePath)
	if err != nil {
		logger.Warn().Err(err).Str("image", imagePath).Msg("image analysis failed, using local fallback")
		fallback := stubAnalysis(imagePath)
		fallback.FallbackReason = err.Error()
		return fallback
	}
	return analysis
}

func (c *Client) analyzeLive(ctx context.Context, imagePath string) (*types.Analysis, error) {
	req, err := c.buildRequest(ctx, imagePath)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("analysis service returned status %d", resp.StatusCode)
	}

	var payload struct {
		RecyclableComponents []types.Component `json:"recyclable_components"`
		Components           []types.Component `json:"components"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding analysis response: %w", err)
	}

	components := payload.RecyclableComponents
	if len(components) == 0 {
		components = payload.Components
	}
	if components == nil {
		components = []types.Component{}
	}

	return &types.Analysis{
		Source:               types.AnalysisSourceGemini,
		RecyclableComponents: components,
		Raw:                  json.RawMessage(body),
	}, nil
}

// buildRequest uploads the stored image as a multipart body when it
// can be read back, and posts a JSON note otherwise so the service can
// decide what to do without one.
func (c *Client) buildRequest(ctx context.Context, imagePath string) (*http.Request, error) {
	key, ok := c.intake.Key(imagePath)
	if ok {
		reader, err := c.storage.Get(ctx, key)
		if err == nil {
			defer reader.Close()
			data, err := io.ReadAll(reader)
			if err == nil {
				return c.multipartRequest(ctx, path.Base(imagePath), data)
			}
		}
	}

	body, err := json.Marshal(map[string]string{"note": "no_file_provided"})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) multipartRequest(ctx context.Context, filename string, data []byte) (*http.Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

// stubAnalysis derives a deterministic result from the image filename:
// the sum of character codes of the base name modulo 100, scaled into
// [0, 1), seeds two fixed material candidates. The suggested tag is a
// fixed informational hint and never overrides the assigned tag.
func stubAnalysis(imagePath string) *types.Analysis {
	base := ""
	if imagePath != "" {
		base = path.Base(strings.ReplaceAll(imagePath, "\\", "/"))
	}

	sum := 0
	for _, r := range base {
		sum += int(r)
	}
	score := float64(sum%100) / 100.0

	return &types.Analysis{
		Source: types.AnalysisSourceStub,
		RecyclableComponents: []types.Component{
			{Name: "copper", Confidence: 0.6 + score*0.3},
			{Name: "plastic", Confidence: 0.4 + score*0.5},
		},
		Raw:          nil,
		SuggestedTag: types.TagReuse,
	}
}
