// Package service runs the per-request question answering pipeline.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"ragqa/internal/answer"
	"ragqa/internal/assembler"
	"ragqa/internal/augment"
	"ragqa/internal/domain"
	"ragqa/internal/index"
)

// State is a step of a single request.
type State string

const (
	StateReceived   State = "RECEIVED"
	StateAugmenting State = "AUGMENTING"
	StateEmbedding  State = "EMBEDDING"
	StateRetrieving State = "RETRIEVING"
	StateAssembling State = "ASSEMBLING"
	StateGenerating State = "GENERATING"
	StateDone       State = "DONE"
	StateErrored    State = "ERRORED"
)

// Runtime holds everything built once at startup.
type Runtime struct {
	Embedder  domain.Embedder
	Index     *index.Index
	Augmenter *augment.Augmenter
	Extractor *answer.Extractor
	MaxBlocks int
}

type requestIDKey struct{}

// WithRequestID attaches a request id used in every log line of the request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id attached by WithRequestID, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// QueryService answers one question at a time. It holds no per-request state.
type QueryService struct {
	rt     Runtime
	logger *log.Logger
}

func NewQueryService(rt Runtime, logger *log.Logger) *QueryService {
	if rt.MaxBlocks <= 0 {
		rt.MaxBlocks = assembler.DefaultMaxBlocks
	}
	return &QueryService{rt: rt, logger: logger}
}

// IndexSize is the number of records available for retrieval.
func (s *QueryService) IndexSize() int { return s.rt.Index.Len() }

// Model names the embedder the index was built with.
func (s *QueryService) Model() string { return s.rt.Index.Model() }

// run tracks the state of one request.
type run struct {
	id      string
	state   State
	started time.Time
	entered time.Time
	logger  *log.Logger
}

func (r *run) to(next State) {
	r.logger.Debug().
		Str("request_id", r.id).
		Str("from", string(r.state)).
		Str("to", string(next)).
		Dur("in_state", time.Since(r.entered)).
		Msg("state transition")
	r.state = next
	r.entered = time.Now()
}

// Answer runs the full pipeline for q.
func (s *QueryService) Answer(ctx context.Context, q domain.Query) (domain.Answer, error) {
	id := RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	r := &run{id: id, state: StateReceived, started: now, entered: now, logger: s.logger}

	if strings.TrimSpace(q.Question) == "" {
		return domain.Answer{}, s.fail(r, &domain.ClientInputError{Message: "missing question"})
	}

	r.to(StateAugmenting)
	aq := s.rt.Augmenter.Augment(ctx, id, q.Question, q.Image)

	r.to(StateEmbedding)
	ranked := s.retrieve(ctx, r, aq.Text)

	r.to(StateAssembling)
	window := assembler.Assemble(ranked, s.rt.Index.Record, aq.ImageDescription, s.rt.MaxBlocks)

	r.to(StateGenerating)
	ans, err := s.rt.Extractor.Extract(ctx, aq, window)
	if err != nil {
		return domain.Answer{}, s.fail(r, err)
	}

	r.to(StateDone)
	s.logger.Info().
		Str("request_id", id).
		Str("state", string(r.state)).
		Bool("image", aq.ImageDescription != "").
		Int("ranked", len(ranked)).
		Int("blocks", len(window)).
		Int("links", len(ans.Links)).
		Strs("sources", assembler.Sources(window)).
		Dur("elapsed", time.Since(r.started)).
		Msg("question answered")
	return ans, nil
}

// retrieve embeds and ranks the query text. Failures yield an empty ranking.
func (s *QueryService) retrieve(ctx context.Context, r *run, text string) []domain.ScoredRecord {
	vec, err := s.rt.Embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn().Err(err).Str("request_id", r.id).Msg("query embedding failed, continuing without retrieval")
		return nil
	}
	r.to(StateRetrieving)
	ranked, err := s.rt.Index.Rank(vec)
	if err != nil {
		s.logger.Warn().Err(err).Str("request_id", r.id).Msg("ranking failed, continuing without retrieval")
		return nil
	}
	return ranked
}

func (s *QueryService) fail(r *run, err error) error {
	from := r.state
	r.to(StateErrored)
	entry := s.logger.Error()
	if domain.IsClientError(err) {
		entry = s.logger.Info()
	}
	entry.Err(err).
		Str("request_id", r.id).
		Str("state", string(r.state)).
		Str("failed_in", string(from)).
		Dur("elapsed", time.Since(r.started)).
		Msg("question failed")
	return err
}
