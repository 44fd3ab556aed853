package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

const defaultEmbeddingURL = "http://localhost:8000"

// ErrEmbeddingServer is returned when the embedding server cannot be reached
// or answers with an error status.
var ErrEmbeddingServer = errors.New("embedding server error")

// FaceDetector locates faces in an encoded image and returns their embeddings.
type FaceDetector interface {
	DetectFaces(ctx context.Context, imageData []byte, quality string) (*FaceResponse, error)
}

// EmbeddingClient computes face embeddings using the embedding server
type EmbeddingClient struct {
	baseURL string
	client  *http.Client
}

var _ FaceDetector = (*EmbeddingClient)(nil)

// NewEmbeddingClient creates a new embedding client
func NewEmbeddingClient(baseURL string) *EmbeddingClient {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &EmbeddingClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// postMultipartImage constructs a multipart form with the image data and the
// given extra fields and posts it to the given endpoint.
func (c *EmbeddingClient) postMultipartImage(ctx context.Context, endpoint string, imageData []byte, fields map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", imageContentType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		// Keep deadline errors recognisable for the caller.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("request failed: %w", ctxErr)
		}
		return nil, fmt.Errorf("%w: request failed: %w", ErrEmbeddingServer, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrEmbeddingServer, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingServer, resp.StatusCode, string(body))
	}

	return body, nil
}

// imageContentType sniffs the image format, falling back to a generic binary type.
func imageContentType(data []byte) string {
	if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "application/octet-stream"
}

// DetectFaces detects faces and computes their embeddings.
// quality selects the detector strategy of the server (fast or accurate).
func (c *EmbeddingClient) DetectFaces(ctx context.Context, imageData []byte, quality string) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData, map[string]string{"quality": quality})
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %w", ErrEmbeddingServer, err)
	}

	return &faceResp, nil
}
