package executor

import (
	"context"
	"time"

	"google.golang.org/genai"

	"github.com/loomchat/loom/internal/library"
	"github.com/loomchat/loom/internal/log"
	"github.com/loomchat/loom/internal/session"
)

// Video poll defaults: 4s between status checks, 60 checks, so a single
// generation is bounded at roughly four minutes of wall clock.
const (
	DefaultPollInterval = 4 * time.Second
	DefaultPollAttempts = 60
)

const defaultVideoMIME = "video/mp4"

// VideoClient is the model-side surface the video executor needs: start a
// long-running generation, refresh its operation handle, and fetch the
// finished media.
type VideoClient interface {
	StartVideo(ctx context.Context, prompt string) (*genai.GenerateVideosOperation, error)
	PollVideo(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
	DownloadVideo(ctx context.Context, rawURI string) ([]byte, error)
}

// VideoConfig contains parameters for the video executor.
type VideoConfig struct {
	Client  VideoClient
	Library Recorder

	// PollInterval is the wait between status checks. Zero selects
	// DefaultPollInterval.
	PollInterval time.Duration

	// PollAttempts caps the number of status checks. Zero selects
	// DefaultPollAttempts.
	PollAttempts int

	Logger log.Logger
}

// Video generates a video for a prompt via the start/poll/download cycle
// and files the result in the media library.
type Video struct {
	client   VideoClient
	library  Recorder
	interval time.Duration
	attempts int
	logger   log.Logger
}

// NewVideo creates a video executor.
func NewVideo(cfg VideoConfig) *Video {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := cfg.PollAttempts
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Video{
		client:   cfg.Client,
		library:  cfg.Library,
		interval: interval,
		attempts: attempts,
		logger:   logger,
	}
}

// Generate runs one video generation end to end. Every failure — start,
// poll, attempt-ceiling timeout, missing result, download — collapses into
// the same terminal error message; the caller never sees a raw error.
func (e *Video) Generate(ctx context.Context, prompt string) session.Message {
	op, err := e.client.StartVideo(ctx, prompt)
	if err != nil {
		e.logger.Error("starting video generation failed", "error", err)
		return session.NewMessage(session.RoleModel, msgVideoError)
	}

	for attempt := 1; op == nil || !op.Done; attempt++ {
		if attempt > e.attempts {
			e.logger.Warn("video generation timed out", "attempts", e.attempts)
			return session.NewMessage(session.RoleModel, msgVideoError)
		}

		select {
		case <-ctx.Done():
			e.logger.Warn("video generation canceled", "error", ctx.Err())
			return session.NewMessage(session.RoleModel, msgVideoError)
		case <-time.After(e.interval):
		}

		op, err = e.client.PollVideo(ctx, op)
		if err != nil {
			e.logger.Error("polling video operation failed", "error", err, "attempt", attempt)
			return session.NewMessage(session.RoleModel, msgVideoError)
		}
	}

	uri, mime := videoResult(op)
	if uri == "" {
		e.logger.Warn("video operation completed without a result", "prompt", prompt)
		return session.NewMessage(session.RoleModel, msgVideoError)
	}

	data, err := e.client.DownloadVideo(ctx, uri)
	if err != nil {
		e.logger.Error("downloading video failed", "error", err)
		return session.NewMessage(session.RoleModel, msgVideoError)
	}

	blob := &genai.Blob{MIMEType: mime, Data: data}
	if err := e.library.Add(library.NewRecord(library.KindVideo, prompt, blob)); err != nil {
		e.logger.Warn("saving video to media library", "error", err)
	}

	return session.NewMediaMessage(session.KindVideo, prompt, blob)
}

// videoResult extracts the download URI and MIME type from a completed
// operation. An empty URI means the operation produced nothing usable.
func videoResult(op *genai.GenerateVideosOperation) (uri, mime string) {
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return "", ""
	}
	video := op.Response.GeneratedVideos[0].Video
	if video == nil {
		return "", ""
	}

	mime = video.MIMEType
	if mime == "" {
		mime = defaultVideoMIME
	}
	return video.URI, mime
}
