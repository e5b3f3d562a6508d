package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ragchat/internal/apperr"
	"ragchat/internal/conversation"
	"ragchat/internal/middleware"
	"ragchat/internal/vector"
)

// State names a step of one conversational turn.
type State string

const (
	StateReceive             State = "RECEIVE"
	StateResolveConversation State = "RESOLVE_CONVERSATION"
	StateRecordUser          State = "RECORD_USER"
	StateEmbedQuery          State = "EMBED_QUERY"
	StateRetrieveContext     State = "RETRIEVE_CONTEXT"
	StateLoadHistory         State = "LOAD_HISTORY"
	StateGenerate            State = "GENERATE"
	StatePersist             State = "PERSIST"
	StateRespond             State = "RESPOND"
	StateFailed              State = "FAILED"
)

type Searcher interface {
	Search(ctx context.Context, collection string, query []float32, topK int) ([]vector.Hit, error)
}

type Options struct {
	Collection       string
	DefaultTopK      int
	HistoryWindow    int
	Temperature      float64
	MaxTokens        int
	GeneratorTimeout time.Duration
	// Serialize holds a per-conversation lock from the user append to the
	// assistant append, so concurrent turns never see a stale history.
	Serialize bool
}

func DefaultOptions() Options {
	return Options{
		Collection:       "documents_collection",
		DefaultTopK:      5,
		HistoryWindow:    6,
		Temperature:      DefaultTemperature,
		MaxTokens:        DefaultMaxTokens,
		GeneratorTimeout: 60 * time.Second,
		Serialize:        true,
	}
}

type Request struct {
	Message        string
	ConversationID string
	TopK           int
}

type Result struct {
	ConversationID string
	Answer         string
	Chunks         []vector.Hit
}

type Service struct {
	embedder  Embedder
	index     Searcher
	store     conversation.Store
	generator Generator
	logger    *QueryLogger
	locks     *conversation.KeyedMutex
	opts      Options
}

func NewService(e Embedder, idx Searcher, store conversation.Store, g Generator, l *QueryLogger, opts Options) *Service {
	s := &Service{embedder: e, index: idx, store: store, generator: g, logger: l, opts: opts}
	if opts.Serialize {
		s.locks = conversation.NewKeyedMutex()
	}
	return s
}

// Converse runs one turn. The user message is recorded before anything that
// can fail downstream and is never rolled back.
func (s *Service) Converse(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	state := StateReceive
	var (
		id      string
		hits    []vector.Hit
		history []conversation.Message
		err     error
	)

	topK := req.TopK
	if topK <= 0 {
		topK = s.opts.DefaultTopK
	}

	defer func() {
		entry := QueryLogEntry{
			Query:          req.Message,
			ConversationID: id,
			TopK:           topK,
			NumResults:     len(hits),
			HistorySize:    len(history),
			Duration:       time.Since(start),
			CorrelationID:  middleware.GetCorrelationID(ctx),
		}
		if err != nil {
			entry.FailedAt = state
			slog.ErrorContext(ctx, "conversation turn failed", "state", state, "error", err)
		}
		if s.logger != nil {
			s.logger.Log(entry)
		}
	}()

	fail := func(cause error, code apperr.Code, msg string) error {
		err = apperr.Wrap(cause, code, msg, apperr.Field("state", string(state)), apperr.Field("conversation_id", id))
		return err
	}

	query := strings.TrimSpace(req.Message)
	if query == "" {
		err = apperr.New(apperr.CodeRequestInvalid, "user message must not be empty")
		return nil, err
	}

	state = StateResolveConversation
	id = req.ConversationID
	if id == "" {
		id = s.store.NewID()
	}
	ctx = middleware.WithConversationID(ctx, id)

	if s.locks != nil {
		unlock := s.locks.Lock(id)
		defer unlock()
	}

	state = StateRecordUser
	if e := s.store.Append(ctx, id, conversation.Message{Role: conversation.RoleUser, Text: query}); e != nil {
		return nil, fail(e, apperr.CodeConversationStoreFailure, "recording user message")
	}

	state = StateEmbedQuery
	vec, e := s.embedder.Embed(ctx, query)
	if e != nil {
		return nil, fail(e, apperr.CodeEmbedderUpstreamFailure, "embedding query")
	}

	state = StateRetrieveContext
	hits, e = s.index.Search(ctx, s.opts.Collection, vec, topK)
	if e != nil {
		return nil, fail(e, apperr.CodeIndexUpstreamFailure, "retrieving context")
	}
	chunks := make([]string, len(hits))
	for i, h := range hits {
		chunks[i] = h.Text
	}

	state = StateLoadHistory
	all, e := s.store.Read(ctx, id)
	if e != nil {
		return nil, fail(e, apperr.CodeConversationStoreFailure, "loading history")
	}
	history = Window(all, s.opts.HistoryWindow)

	state = StateGenerate
	answer, e := s.generate(ctx, BuildPrompt(chunks, history, query))
	if e != nil {
		return nil, fail(e, apperr.CodeGeneratorUpstreamFailure, "generating answer")
	}

	state = StatePersist
	if e := s.store.Append(ctx, id, conversation.Message{Role: conversation.RoleAssistant, Text: answer}); e != nil {
		return nil, fail(e, apperr.CodeConversationStoreFailure, "recording assistant message")
	}

	state = StateRespond
	slog.InfoContext(ctx, "conversation turn completed", "chunks", len(hits), "history", len(history), "duration", time.Since(start))
	return &Result{ConversationID: id, Answer: answer, Chunks: hits}, nil
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	if s.opts.GeneratorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.GeneratorTimeout)
		defer cancel()
	}

	answer, err := s.generator.Generate(ctx, GenerateRequest{
		Prompt:      prompt,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return "", GeneratorError(ctx, err, "")
	}
	return strings.TrimSpace(answer), nil
}

// History returns the stored messages of a conversation, or a not-found
// error when nothing is stored under id.
func (s *Service) History(ctx context.Context, id string) ([]conversation.Message, error) {
	msgs, err := s.store.Read(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeConversationStoreFailure, "reading conversation")
	}
	if len(msgs) == 0 {
		return nil, apperr.New(apperr.CodeConversationNotFound, "Conversation not found", apperr.Field("conversation_id", id))
	}
	return msgs, nil
}

func (s *Service) Clear(ctx context.Context, id string) error {
	if err := s.store.Clear(ctx, id); err != nil {
		return apperr.Wrap(err, apperr.CodeConversationStoreFailure, "clearing conversation")
	}
	return nil
}
