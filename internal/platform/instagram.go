package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonesrussell/reelcast/internal/logger"
)

const (
	// graphAPIBase is the Meta Graph API endpoint
	graphAPIBase = "https://graph.facebook.com/v21.0"

	// graphRateLimitCode is the Graph API error code for throttling
	graphRateLimitCode = 4

	// instagramRequestTimeout bounds individual Graph API calls
	instagramRequestTimeout = 60 * time.Second
)

// Instagram publishes reels and feed images through the Graph API.
// Videos become Reels containers, images become feed posts; both go through
// the same create-poll-publish cycle.
type Instagram struct {
	client      *http.Client
	baseURL     string
	accountID   string
	accessToken string
	logger      logger.Logger
}

func NewInstagram(client *http.Client, accountID, accessToken string, log logger.Logger) *Instagram {
	if client == nil {
		client = &http.Client{Timeout: instagramRequestTimeout}
	}
	return &Instagram{
		client:      client,
		baseURL:     graphAPIBase,
		accountID:   accountID,
		accessToken: accessToken,
		logger:      log,
	}
}

// SetBaseURL overrides the Graph API endpoint, for tests.
func (ig *Instagram) SetBaseURL(u string) { ig.baseURL = u }

func (ig *Instagram) Name() string { return "instagram" }

func (ig *Instagram) Supports(isVideo bool) bool { return true }

func (ig *Instagram) RequiresProcessing() bool { return true }

// CreateMedia creates a media container for the staged asset.
func (ig *Instagram) CreateMedia(ctx context.Context, req CreateRequest) (string, error) {
	form := url.Values{}
	form.Set("caption", req.Caption)
	form.Set("access_token", ig.accessToken)
	if req.IsVideo {
		form.Set("media_type", "REELS")
		form.Set("video_url", req.AssetURL)
		form.Set("share_to_feed", "true")
	} else {
		form.Set("image_url", req.AssetURL)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := ig.postForm(ctx, ig.baseURL+"/"+ig.accountID+"/media", form, &result); err != nil {
		return "", fmt.Errorf("create media container: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("create media container: empty creation id")
	}

	ig.logger.Debug("Media container created",
		logger.String("creation_id", result.ID),
		logger.Bool("video", req.IsVideo),
	)
	return result.ID, nil
}

// GetStatus reads the container's processing state.
func (ig *Instagram) GetStatus(ctx context.Context, creationID string) (Status, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s",
		ig.baseURL, creationID, url.QueryEscape(ig.accessToken))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := ig.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", graphError(resp.StatusCode, body)
	}

	var result struct {
		StatusCode string `json:"status_code"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode status response: %w", err)
	}

	switch result.StatusCode {
	case "FINISHED":
		return StatusFinished, nil
	case "ERROR":
		return StatusError, nil
	default:
		return StatusInProgress, nil
	}
}

// Publish makes the container live.
func (ig *Instagram) Publish(ctx context.Context, creationID string) (string, error) {
	form := url.Values{}
	form.Set("creation_id", creationID)
	form.Set("access_token", ig.accessToken)

	var result struct {
		ID string `json:"id"`
	}
	if err := ig.postForm(ctx, ig.baseURL+"/"+ig.accountID+"/media_publish", form, &result); err != nil {
		return "", fmt.Errorf("publish media: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("publish media: empty post id")
	}
	return result.ID, nil
}

// maxResponseBytes caps Graph API response reads
const maxResponseBytes = 1 << 20

func (ig *Instagram) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ig.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return graphError(resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}

// graphError decodes a Graph API error payload, surfacing throttling as
// ErrRateLimited so the driver stops retrying.
func graphError(statusCode int, body []byte) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Code != 0 {
		if payload.Error.Code == graphRateLimitCode {
			return fmt.Errorf("%w: %s", ErrRateLimited, payload.Error.Message)
		}
		return fmt.Errorf("graph API error %d: %s", payload.Error.Code, payload.Error.Message)
	}
	// Proxies in front of the Graph API throttle with a bare 429
	if statusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: HTTP %d", ErrRateLimited, statusCode)
	}
	return fmt.Errorf("graph API HTTP %d: %s", statusCode, strings.TrimSpace(string(body)))
}
