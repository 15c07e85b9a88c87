package staging

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// maxErrorBodyBytes caps how much of an error response gets read for messages
const maxErrorBodyBytes = 512

// TmpFiles uploads to tmpfiles.org. Works for both images and video and
// needs no credentials, so it is the primary host.
type TmpFiles struct {
	Client  *http.Client
	BaseURL string
}

func NewTmpFiles(client *http.Client) *TmpFiles {
	if client == nil {
		client = http.DefaultClient
	}
	return &TmpFiles{Client: client, BaseURL: "https://tmpfiles.org"}
}

func (t *TmpFiles) Name() string { return "tmpfiles" }

func (t *TmpFiles) Upload(ctx context.Context, data []byte, filename, mime string) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/api/v1/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := t.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload failed: %s", readError(resp))
	}

	var result struct {
		Status string `json:"status"`
		Data   struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Status != "success" || result.Data.URL == "" {
		return "", fmt.Errorf("upload rejected: status %q", result.Status)
	}

	return directDownloadURL(result.Data.URL)
}

// directDownloadURL rewrites a tmpfiles page URL into its /dl/ form, which
// serves the raw file that platform APIs can ingest.
func directDownloadURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse upload url: %w", err)
	}
	if !strings.HasPrefix(u.Path, "/dl/") {
		u.Path = "/dl" + u.Path
	}
	return u.String(), nil
}

// Imgur uploads images anonymously with a client ID. Video is not supported,
// so the stager only reaches it when tmpfiles is down.
type Imgur struct {
	Client   *http.Client
	BaseURL  string
	ClientID string
}

// DefaultImgurClientID is the anonymous upload client ID
const DefaultImgurClientID = "546c25a59c58ad7"

func NewImgur(client *http.Client, clientID string) *Imgur {
	if client == nil {
		client = http.DefaultClient
	}
	if clientID == "" {
		clientID = DefaultImgurClientID
	}
	return &Imgur{Client: client, BaseURL: "https://api.imgur.com", ClientID: clientID}
}

func (i *Imgur) Name() string { return "imgur" }

func (i *Imgur) Upload(ctx context.Context, data []byte, filename, mime string) (string, error) {
	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(data))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.BaseURL+"/3/image",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Client-ID "+i.ClientID)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := i.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload failed: %s", readError(resp))
	}

	var result struct {
		Data struct {
			Link string `json:"link"`
		} `json:"data"`
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if !result.Success || result.Data.Link == "" {
		return "", fmt.Errorf("upload rejected")
	}
	return result.Data.Link, nil
}

// Imgbb uploads images with an API key. Last resort, and only wired when a
// key is configured.
type Imgbb struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
}

func NewImgbb(client *http.Client, apiKey string) *Imgbb {
	if client == nil {
		client = http.DefaultClient
	}
	return &Imgbb{Client: client, BaseURL: "https://api.imgbb.com", APIKey: apiKey}
}

func (i *Imgbb) Name() string { return "imgbb" }

func (i *Imgbb) Upload(ctx context.Context, data []byte, filename, mime string) (string, error) {
	form := url.Values{}
	form.Set("key", i.APIKey)
	form.Set("image", base64.StdEncoding.EncodeToString(data))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.BaseURL+"/1/upload",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := i.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload failed: %s", readError(resp))
	}

	var result struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Data.URL == "" {
		return "", fmt.Errorf("upload rejected")
	}
	return result.Data.URL, nil
}

func readError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
