package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"valetgate/internal/gateway"
	"valetgate/internal/valet"
)

// getenv returns the value of the environment variable named by key or
// fallback if the variable is not present.
func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

const (
	Resource  = "example.bin"
	Subject   = "example-client"
	ChunkSize = 256 * 1024
)

// Client is a minimal gateway client carrying a valet token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set(valet.TokenHeader, c.token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.http.Do(req)
}

// CreateSession starts a new upload session for the resource.
func (c *Client) CreateSession(ctx context.Context, resource string) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/files/"+resource+"/uploads", nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d creating session", resp.StatusCode)
	}

	var created gateway.CreateSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}
	return created.SessionID, nil
}

// UploadChunk sends one numbered chunk of the payload.
func (c *Client) UploadChunk(ctx context.Context, resource string, chunkID int, data []byte) error {
	headers := map[string]string{gateway.ChunkIDHeader: strconv.Itoa(chunkID)}
	resp, err := c.do(ctx, http.MethodPut, "/files/"+resource+"/chunks", headers, data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d uploading chunk %d", resp.StatusCode, chunkID)
	}
	return nil
}

// FinishSession assembles the uploaded chunks into the final object.
func (c *Client) FinishSession(ctx context.Context, resource string) error {
	resp, err := c.do(ctx, http.MethodPost, "/files/"+resource+"/uploads/complete", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var outcome gateway.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return fmt.Errorf("failed to decode completion response: %w", err)
	}
	if !outcome.OK {
		return fmt.Errorf("completion refused: %s", outcome.Message)
	}
	return nil
}

// Download fetches the whole file ranged chunk by ranged chunk, resuming
// from the byte offset the previous response left off at.
func (c *Client) Download(ctx context.Context, resource string) ([]byte, error) {
	var buf bytes.Buffer

	for offset := int64(0); ; {
		headers := map[string]string{
			"Range":                 fmt.Sprintf("bytes=%d-", offset),
			gateway.ChunkSizeHeader: strconv.Itoa(ChunkSize),
		}
		resp, err := c.do(ctx, http.MethodGet, "/files/"+resource, headers, nil)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
			resp.Body.Close()
			return buf.Bytes(), nil
		}
		if resp.StatusCode != http.StatusPartialContent {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d downloading at offset %d", resp.StatusCode, offset)
		}

		n, err := io.Copy(&buf, resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read range at offset %d: %w", offset, err)
		}

		slog.Info("Fetched range", "content_range", resp.Header.Get("Content-Range"), "bytes", n)
		offset += n
	}
}

func Run(ctx context.Context, client *Client, writeToken, readToken string) error {
	payload := bytes.Repeat([]byte("valetgate example payload\n"), 32*1024)

	client.token = writeToken

	// 1. Start an upload session.
	sessionID, err := client.CreateSession(ctx, Resource)
	if err != nil {
		return fmt.Errorf("failed to create upload session: %w", err)
	}
	slog.Info("Created upload session", "session_id", sessionID)

	// 2. Send the payload as numbered chunks.
	chunkID := 1
	for off := 0; off < len(payload); off += ChunkSize {
		end := min(off+ChunkSize, len(payload))
		if err := client.UploadChunk(ctx, Resource, chunkID, payload[off:end]); err != nil {
			return fmt.Errorf("failed to upload chunk %d: %w", chunkID, err)
		}
		chunkID++
	}
	slog.Info("Uploaded chunks", "count", chunkID-1, "total_size", len(payload))

	// 3. Complete the upload.
	if err := client.FinishSession(ctx, Resource); err != nil {
		return fmt.Errorf("failed to finish upload session: %w", err)
	}
	slog.Info("Completed upload")

	// 4. Download the file back with ranged requests and verify it.
	client.token = readToken
	downloaded, err := client.Download(ctx, Resource)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	if !bytes.Equal(downloaded, payload) {
		return fmt.Errorf("downloaded payload differs: got %d bytes, want %d", len(downloaded), len(payload))
	}
	slog.Info("Downloaded file matches uploaded payload", "size", len(downloaded))

	return nil
}

func main() {
	baseURL := getenv("GATEWAY_URL", "http://localhost:8080")
	secret := getenv("TOKEN_SECRET", "example-secret")
	issuer := getenv("TOKEN_ISSUER", "valetgate")

	codec := valet.NewHS256([]byte(secret), issuer, time.Hour)
	writeToken, err := codec.Issue(Subject, []string{Resource}, valet.OperationWrite)
	if err != nil {
		slog.Error("failed to issue write token", "err", err)
		os.Exit(1)
	}

	// Downloads carry a separate read grant.
	readToken, err := codec.Issue(Subject, []string{Resource}, valet.OperationRead)
	if err != nil {
		slog.Error("failed to issue read token", "err", err)
		os.Exit(1)
	}

	client := &Client{baseURL: baseURL, http: &http.Client{Timeout: 30 * time.Second}}

	ctx := context.Background()

	if err := Run(ctx, client, writeToken, readToken); err != nil {
		slog.Error("error running example", "err", err)
		os.Exit(1)
	}
}
