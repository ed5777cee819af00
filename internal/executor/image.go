// Package executor runs callable tool requests on behalf of the
// conversation loop. Executors never return errors: every failure mode is
// absorbed into a terminal model message so the loop treats success and
// failure uniformly.
package executor

import (
	"context"

	"google.golang.org/genai"

	"github.com/loomchat/loom/internal/library"
	"github.com/loomchat/loom/internal/log"
	"github.com/loomchat/loom/internal/session"
)

// User-facing terminal messages. Soft failures (a well-formed response with
// no payload) read differently from hard errors on purpose.
const (
	msgImageEmpty = "Sorry, I could not generate the image. Try rephrasing the prompt."
	msgImageError = "Sorry, an error occurred while generating the image."
	msgVideoError = "Sorry, an error occurred while generating the video."
)

const defaultImageMIME = "image/png"

// ImageClient is the model-side surface the image executor needs.
type ImageClient interface {
	GenerateImage(ctx context.Context, prompt string) (*genai.GenerateImagesResponse, error)
}

// Recorder commits generated media to the durable library.
type Recorder interface {
	Add(rec library.Record) error
}

// ImageConfig contains parameters for the image executor.
type ImageConfig struct {
	Client  ImageClient
	Library Recorder
	Logger  log.Logger
}

// Image generates an image for a prompt and files it in the media library.
type Image struct {
	client  ImageClient
	library Recorder
	logger  log.Logger
}

// NewImage creates an image executor.
func NewImage(cfg ImageConfig) *Image {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Image{
		client:  cfg.Client,
		library: cfg.Library,
		logger:  logger,
	}
}

// Generate runs one synchronous image generation. The returned message is
// the final conversation entry for this tool call: a media message on
// success, a plain text message on any failure.
func (e *Image) Generate(ctx context.Context, prompt string) session.Message {
	resp, err := e.client.GenerateImage(ctx, prompt)
	if err != nil {
		e.logger.Error("image generation failed", "error", err)
		return session.NewMessage(session.RoleModel, msgImageError)
	}

	blob := firstImageBlob(resp)
	if blob == nil {
		e.logger.Warn("image response carried no payload", "prompt", prompt)
		return session.NewMessage(session.RoleModel, msgImageEmpty)
	}

	// Library persistence is best-effort; the conversation result stands
	// even when the library write fails.
	if err := e.library.Add(library.NewRecord(library.KindImage, prompt, blob)); err != nil {
		e.logger.Warn("saving image to media library", "error", err)
	}

	return session.NewMediaMessage(session.KindImage, prompt, blob)
}

// firstImageBlob extracts the first inline image payload, or nil when the
// response has none.
func firstImageBlob(resp *genai.GenerateImagesResponse) *genai.Blob {
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil
	}
	img := resp.GeneratedImages[0].Image
	if img == nil || len(img.ImageBytes) == 0 {
		return nil
	}

	mime := img.MIMEType
	if mime == "" {
		mime = defaultImageMIME
	}
	return &genai.Blob{MIMEType: mime, Data: img.ImageBytes}
}
