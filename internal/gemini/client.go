// Package gemini wraps the google.golang.org/genai SDK behind the small
// surface the rest of loom consumes: one synchronous generate call, image
// generation, video operation start/poll, and authenticated media download.
//
// The wrapper is stateless; conversation state lives with the caller.
// Consumers depend on their own interfaces (chat.Generator,
// executor.ImageClient, executor.VideoClient) which *Client satisfies.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"google.golang.org/genai"

	"github.com/loomchat/loom/internal/log"
)

// Fixed generation parameters. The conversation surface never exposes
// aspect-ratio or resolution choices, so these stay constants rather
// than configuration.
const (
	imageAspectRatio = "1:1"
	videoAspectRatio = "16:9"
	videoResolution  = "720p"
)

// downloadTimeout bounds a single video download.
const downloadTimeout = 2 * time.Minute

// Config contains required parameters for the client.
type Config struct {
	APIKey     string
	ImageModel string
	VideoModel string
	Logger     log.Logger

	// HTTPClient is used for video downloads. Nil selects a default
	// client with downloadTimeout.
	HTTPClient *http.Client
}

func (cfg Config) validate() error {
	if cfg.APIKey == "" {
		return errors.New("API key is required")
	}
	if cfg.ImageModel == "" {
		return errors.New("image model is required")
	}
	if cfg.VideoModel == "" {
		return errors.New("video model is required")
	}
	return nil
}

// Client is the concrete model client over the Gemini API.
type Client struct {
	genai      *genai.Client
	httpClient *http.Client
	apiKey     string
	imageModel string
	videoModel string
	logger     log.Logger
}

// New creates a Client for the Gemini API backend.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: downloadTimeout}
	}

	return &Client{
		genai:      gc,
		httpClient: httpClient,
		apiKey:     cfg.APIKey,
		imageModel: cfg.ImageModel,
		videoModel: cfg.VideoModel,
		logger:     logger,
	}, nil
}

// Generate issues a single synchronous content-generation call. No retry:
// transport and service errors surface to the caller, which converts them
// into a terminal conversation message.
func (c *Client) Generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := c.genai.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return resp, nil
}

// GenerateImage requests a single square image for the prompt.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*genai.GenerateImagesResponse, error) {
	resp, err := c.genai.Models.GenerateImages(ctx, c.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    imageAspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	return resp, nil
}

// StartVideo begins a long-running video generation and returns the
// operation handle to poll.
func (c *Client) StartVideo(ctx context.Context, prompt string) (*genai.GenerateVideosOperation, error) {
	op, err := c.genai.Models.GenerateVideos(ctx, c.videoModel, prompt, nil, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    videoAspectRatio,
		Resolution:     videoResolution,
	})
	if err != nil {
		return nil, fmt.Errorf("start video generation: %w", err)
	}
	return op, nil
}

// PollVideo refreshes the operation handle. Callers replace their handle
// with the returned one on every poll.
func (c *Client) PollVideo(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	refreshed, err := c.genai.Operations.GetVideosOperation(ctx, op, nil)
	if err != nil {
		return nil, fmt.Errorf("poll video operation: %w", err)
	}
	return refreshed, nil
}

// DownloadVideo fetches the generated media bytes from the operation's
// result URI, authenticating by appending the API key as a query parameter
// (the form the video service expects).
func (c *Client) DownloadVideo(ctx context.Context, rawURI string) ([]byte, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return nil, fmt.Errorf("parsing video URI: %w", err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building video download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading video: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("closing video download body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading video bytes: %w", err)
	}

	c.logger.Debug("downloaded video", "bytes", len(data))
	return data, nil
}
