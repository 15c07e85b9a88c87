package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/jonesrussell/reelcast/internal/caption"
	"github.com/jonesrussell/reelcast/internal/logger"
)

const (
	// youtubeAPIBase is the YouTube Data API endpoint
	youtubeAPIBase = "https://www.googleapis.com/youtube/v3"

	// youtubeUploadBase is the media upload endpoint
	youtubeUploadBase = "https://www.googleapis.com/upload/youtube/v3"

	// youtubeNewsCategory is the News & Politics category ID
	youtubeNewsCategory = "25"

	// youtubeUploadTimeout bounds the multipart video upload
	youtubeUploadTimeout = 5 * time.Minute
)

// YouTube publishes reels as Shorts. The Data API ingests bytes rather than
// URLs, so CreateMedia downloads the staged asset and uploads it unlisted;
// Publish then flips the privacy status to public.
type YouTube struct {
	client      *http.Client
	apiBase     string
	uploadBase  string
	accessToken string
	logger      logger.Logger
}

func NewYouTube(client *http.Client, accessToken string, log logger.Logger) *YouTube {
	if client == nil {
		client = &http.Client{Timeout: youtubeUploadTimeout}
	}
	return &YouTube{
		client:      client,
		apiBase:     youtubeAPIBase,
		uploadBase:  youtubeUploadBase,
		accessToken: accessToken,
		logger:      log,
	}
}

// SetBaseURLs overrides the API endpoints, for tests.
func (yt *YouTube) SetBaseURLs(api, upload string) {
	yt.apiBase = api
	yt.uploadBase = upload
}

func (yt *YouTube) Name() string { return "youtube" }

// Supports is video-only: YouTube has no feed-image fallback.
func (yt *YouTube) Supports(isVideo bool) bool { return isVideo }

func (yt *YouTube) RequiresProcessing() bool { return true }

type youtubeVideo struct {
	ID      string `json:"id,omitempty"`
	Snippet *struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags,omitempty"`
		CategoryID  string   `json:"categoryId,omitempty"`
	} `json:"snippet,omitempty"`
	Status *struct {
		PrivacyStatus           string `json:"privacyStatus"`
		SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
	} `json:"status,omitempty"`
	ProcessingDetails *struct {
		ProcessingStatus string `json:"processingStatus"`
	} `json:"processingDetails,omitempty"`
}

// CreateMedia downloads the staged asset and uploads it as an unlisted
// video, deferring visibility to Publish.
func (yt *YouTube) CreateMedia(ctx context.Context, req CreateRequest) (string, error) {
	videoData, err := yt.download(ctx, req.AssetURL)
	if err != nil {
		return "", fmt.Errorf("download staged asset: %w", err)
	}

	description := req.Description
	if description == "" {
		description = req.Caption
	}

	metadata := map[string]any{
		"snippet": map[string]any{
			"title":       req.Title,
			"description": caption.EnsureShortsTag(description),
			"tags":        []string{"news", "shorts", "breaking news"},
			"categoryId":  youtubeNewsCategory,
		},
		"status": map[string]any{
			"privacyStatus":           "unlisted",
			"selfDeclaredMadeForKids": false,
		},
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := w.CreatePart(metaHeader)
	if err != nil {
		return "", fmt.Errorf("create metadata part: %w", err)
	}
	if err := json.NewEncoder(metaPart).Encode(metadata); err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", req.Mime)
	mediaPart, err := w.CreatePart(mediaHeader)
	if err != nil {
		return "", fmt.Errorf("create media part: %w", err)
	}
	if _, err := mediaPart.Write(videoData); err != nil {
		return "", fmt.Errorf("write media part: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	endpoint := yt.uploadBase + "/videos?uploadType=multipart&part=snippet,status"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+yt.accessToken)
	httpReq.Header.Set("Content-Type", "multipart/related; boundary="+w.Boundary())

	var result youtubeVideo
	if err := yt.do(httpReq, &result); err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("upload video: empty video id")
	}

	yt.logger.Debug("Video uploaded unlisted",
		logger.String("video_id", result.ID),
		logger.Int("size", len(videoData)),
	)
	return result.ID, nil
}

// GetStatus reads the video's processing state.
func (yt *YouTube) GetStatus(ctx context.Context, creationID string) (Status, error) {
	endpoint := yt.apiBase + "/videos?part=processingDetails&id=" + creationID
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+yt.accessToken)

	var result struct {
		Items []youtubeVideo `json:"items"`
	}
	if err := yt.do(httpReq, &result); err != nil {
		return "", fmt.Errorf("get processing status: %w", err)
	}
	if len(result.Items) == 0 || result.Items[0].ProcessingDetails == nil {
		return StatusInProgress, nil
	}

	switch result.Items[0].ProcessingDetails.ProcessingStatus {
	case "succeeded":
		return StatusFinished, nil
	case "failed", "terminated":
		return StatusError, nil
	default:
		return StatusInProgress, nil
	}
}

// Publish flips the uploaded video to public.
func (yt *YouTube) Publish(ctx context.Context, creationID string) (string, error) {
	update := map[string]any{
		"id": creationID,
		"status": map[string]any{
			"privacyStatus": "public",
		},
	}
	payload, err := json.Marshal(update)
	if err != nil {
		return "", fmt.Errorf("encode status update: %w", err)
	}

	endpoint := yt.apiBase + "/videos?part=status"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+yt.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	var result youtubeVideo
	if err := yt.do(httpReq, &result); err != nil {
		return "", fmt.Errorf("publish video: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("publish video: empty video id")
	}
	return result.ID, nil
}

func (yt *YouTube) download(ctx context.Context, assetURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := yt.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch asset: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (yt *YouTube) do(req *http.Request, out any) error {
	resp, err := yt.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return youtubeError(resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}

// youtubeError decodes a Data API error payload, surfacing quota refusals
// as ErrRateLimited.
func youtubeError(statusCode int, body []byte) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		for _, e := range payload.Error.Errors {
			if e.Reason == "quotaExceeded" || e.Reason == "rateLimitExceeded" ||
				e.Reason == "userRateLimitExceeded" {
				return fmt.Errorf("%w: %s", ErrRateLimited, payload.Error.Message)
			}
		}
		return fmt.Errorf("youtube API error: %s", payload.Error.Message)
	}
	if statusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: HTTP 429", ErrRateLimited)
	}
	return fmt.Errorf("youtube API HTTP %d: %s", statusCode, strings.TrimSpace(string(body)))
}
