// Package augment folds an optional image description into the question text.
package augment

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/phuslu/log"

	"ragqa/internal/domain"
)

// CaptionInstruction is sent with every image.
const CaptionInstruction = "Explain the content of this image in the context of an academic discussion forum and extract text from the image. " +
	"Focus on providing a concise and informative description that would help users understand the image's relevance to the discussion, " +
	"do not include solution or anything that is not relevant to the image."

const descriptionHeader = "\n\n[Image Description]\n"

// DefaultCaptionTimeout bounds a single caption call.
const DefaultCaptionTimeout = 60 * time.Second

// Augmenter builds the augmented query. A nil captioner disables image handling.
type Augmenter struct {
	captioner domain.Captioner
	timeout   time.Duration
	logger    *log.Logger
}

func New(captioner domain.Captioner, timeout time.Duration, logger *log.Logger) *Augmenter {
	if timeout <= 0 {
		timeout = DefaultCaptionTimeout
	}
	return &Augmenter{captioner: captioner, timeout: timeout, logger: logger}
}

// Augment returns the question, extended with the image description when one is available.
func (a *Augmenter) Augment(ctx context.Context, requestID, question, image string) domain.AugmentedQuery {
	if strings.TrimSpace(image) == "" {
		return domain.AugmentedQuery{Text: question}
	}
	desc, ok := a.Describe(ctx, requestID, image)
	if !ok {
		return domain.AugmentedQuery{Text: question}
	}
	return domain.AugmentedQuery{Text: Compose(question, desc), ImageDescription: desc}
}

// Compose appends an image description to a question.
func Compose(question, description string) string {
	if description == "" {
		return question
	}
	return question + descriptionHeader + description
}

// Describe decodes and captions the image. Every failure is logged and reported as ok == false.
func (a *Augmenter) Describe(ctx context.Context, requestID, image string) (string, bool) {
	if a.captioner == nil {
		a.logger.Debug().Str("request_id", requestID).Msg("image ignored, no captioner configured")
		return "", false
	}
	data, mimeType, err := DecodeImage(image)
	if err != nil {
		a.logger.Warn().Err(err).Str("request_id", requestID).Msg("image rejected")
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	started := time.Now()
	desc, err := a.captioner.Caption(ctx, data, mimeType, CaptionInstruction)
	if err != nil {
		a.logger.Warn().Err(err).Str("request_id", requestID).Dur("elapsed", time.Since(started)).Msg("captioning failed")
		return "", false
	}
	desc = strings.TrimSpace(desc)
	if desc == "" {
		a.logger.Warn().Str("request_id", requestID).Msg("captioner returned an empty description")
		return "", false
	}
	a.logger.Debug().Str("request_id", requestID).Int("chars", len(desc)).Dur("elapsed", time.Since(started)).Msg("image described")
	return desc, true
}

// DecodeImage accepts raw base64 or a data URI and returns the bytes and sniffed MIME type.
func DecodeImage(encoded string) ([]byte, string, error) {
	payload := strings.TrimSpace(encoded)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, body, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", &domain.InvalidImageError{Reason: "data URI without payload"}
		}
		if !strings.HasSuffix(header, ";base64") {
			return nil, "", &domain.InvalidImageError{Reason: "data URI is not base64 encoded"}
		}
		payload = body
	}
	payload = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, payload)
	if payload == "" {
		return nil, "", &domain.InvalidImageError{Reason: "empty payload"}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return nil, "", &domain.InvalidImageError{Reason: "malformed base64: " + err.Error()}
	}
	if len(data) == 0 {
		return nil, "", &domain.InvalidImageError{Reason: "empty payload"}
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, "", &domain.InvalidImageError{Reason: "content is " + mt.String() + ", not an image"}
	}
	return data, mt.String(), nil
}
