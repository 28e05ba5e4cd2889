// Package chat is the per-turn orchestrator: it holds the sequence
// Received → LanguageDetected → DialogAdvanced → ContextRetrieved →
// PromptAssembled → Generated → Translated → Committed together, with
// retries and canned fallbacks around the completion collaborator. The
// whole turn runs inside the session lock, so the commit is atomic and
// turns for one conversation apply in lock-grant order.
package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/emporda/minairo/internal/dialog"
	"github.com/emporda/minairo/internal/knowledge"
	"github.com/emporda/minairo/internal/language"
	"github.com/emporda/minairo/internal/log"
	"github.com/emporda/minairo/internal/prompt"
	"github.com/emporda/minairo/internal/session"
)

// maxMessageRunes caps inbound message length before processing.
const maxMessageRunes = 4000

// apologyText answers the turns that cannot be processed at all
// (script defect, prompt overflow). Those turns commit nothing.
const apologyText = "Meow... something got tangled in my whiskers. Could you ask me that again?"

// Params are the generation parameters forwarded to the completion
// collaborator.
type Params struct {
	Temperature float32
	MaxTokens   int
}

// CompletionClient is the external text-generation collaborator. It
// reports transient and permanent failures through the package
// sentinels (ErrTimeout, ErrRateLimited, ErrUnavailable, ErrAuth).
type CompletionClient interface {
	Complete(ctx context.Context, prompt string, params Params) (string, error)
}

// Reply is the outcome of one processed turn.
type Reply struct {
	ConversationID string
	Response       string
	Language       string
	Sentiment      float64

	// Degraded marks a canned response served because generation was
	// exhausted or the circuit was open.
	Degraded bool

	// Untranslated marks a turn that should have been translated but
	// passed through because the translator was missing or failing.
	Untranslated bool
}

// Config wires the coordinator's collaborators.
type Config struct {
	Sessions   *session.Store
	Engine     *dialog.Engine
	Retriever  *knowledge.Store
	Assembler  *prompt.Assembler
	Language   *language.Pipeline
	Completion CompletionClient

	// Proverbs, when set, closes free-form answers with a saying
	// matched to the visitor's mood.
	Proverbs *language.ProverbSet

	// Pivot is the language retrieval and generation run in. Turns in
	// other languages are translated to it on the way in and back on
	// the way out, fail-open in both directions.
	Pivot string

	Params  Params
	Retry   RetryConfig
	Circuit CircuitConfig

	// RateLimiter throttles completion calls across all conversations.
	// Nil disables client-side limiting.
	RateLimiter *rate.Limiter

	// RequestTimeout bounds one completion attempt. Zero means no
	// per-attempt bound beyond the caller's context.
	RequestTimeout time.Duration

	Logger log.Logger
}

func (c *Config) validate() error {
	if c.Sessions == nil {
		return errors.New("session store is required")
	}
	if c.Engine == nil {
		return errors.New("dialog engine is required")
	}
	if c.Retriever == nil {
		return errors.New("retriever is required")
	}
	if c.Assembler == nil {
		return errors.New("prompt assembler is required")
	}
	if c.Language == nil {
		return errors.New("language pipeline is required")
	}
	if c.Completion == nil {
		return errors.New("completion client is required")
	}
	if c.Pivot == "" {
		return errors.New("pivot language is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Coordinator drives one conversation turn end to end. Stateless apart
// from the injected stores; safe for concurrent use across
// conversations.
type Coordinator struct {
	sessions   *session.Store
	engine     *dialog.Engine
	retriever  *knowledge.Store
	assembler  *prompt.Assembler
	lang       *language.Pipeline
	completion CompletionClient
	proverbs   *language.ProverbSet

	pivot      string
	params     Params
	retry      RetryConfig
	breaker    *CircuitBreaker
	limiter    *rate.Limiter
	reqTimeout time.Duration

	logger log.Logger
	tracer oteltrace.Tracer
}

// New creates a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid chat config: %w", err)
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	return &Coordinator{
		sessions:   cfg.Sessions,
		engine:     cfg.Engine,
		retriever:  cfg.Retriever,
		assembler:  cfg.Assembler,
		lang:       cfg.Language,
		completion: cfg.Completion,
		proverbs:   cfg.Proverbs,
		pivot:      cfg.Pivot,
		params:     cfg.Params,
		retry:      retry,
		breaker:    NewCircuitBreaker(cfg.Circuit),
		limiter:    cfg.RateLimiter,
		reqTimeout: cfg.RequestTimeout,
		logger:     cfg.Logger,
		tracer:     otel.Tracer("minairo/chat"),
	}, nil
}

// Respond processes one inbound turn. The returned Reply always carries
// a user-facing response; only boundary failures (invalid input,
// unknown or busy session) surface as errors.
func (c *Coordinator) Respond(ctx context.Context, conversationID, message string) (*Reply, error) {
	message, err := sanitize(message)
	if err != nil {
		return nil, err
	}

	st, err := c.sessions.GetOrCreate(conversationID)
	if err != nil {
		if errors.Is(err, session.ErrInvalidID) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}
	id := st.ConversationID

	ctx, span := c.tracer.Start(ctx, "chat.turn",
		oteltrace.WithAttributes(attribute.String("conversation.id", id)))
	defer span.End()

	var reply *Reply
	err = c.sessions.WithLock(ctx, id, func(st *session.State) error {
		r, turnErr := c.turn(ctx, st, message)
		reply = r
		return turnErr
	})
	if err != nil {
		// Script defects and prompt overflow are unrecoverable for the
		// turn: answer with an apology and commit nothing.
		if errors.Is(err, dialog.ErrScript) || errors.Is(err, prompt.ErrTooLarge) {
			span.RecordError(err)
			c.logger.Error("turn failed, answering with apology",
				"conversation_id", id, "error", err)
			lang := c.lang.Resolve(reply.language())
			text, _ := c.lang.Translate(ctx, apologyText, c.pivot, lang)
			return &Reply{ConversationID: id, Response: text, Language: lang}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "turn failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("turn.language", reply.Language),
		attribute.Bool("turn.degraded", reply.Degraded),
	)
	return reply, nil
}

// language is a nil-tolerant accessor used on the apology path, where
// the turn may have failed before a reply was built.
func (r *Reply) language() string {
	if r == nil {
		return ""
	}
	return r.Language
}

// turn runs the pipeline on the locked session state. Returning nil
// commits the mutated state; returning an error publishes nothing.
func (c *Coordinator) turn(ctx context.Context, st *session.State, message string) (*Reply, error) {
	now := time.Now()

	// Detection and sentiment are independent reads of the raw message.
	var (
		detected   string
		confidence float64
		score      float64
	)
	var g errgroup.Group
	g.Go(func() error {
		detected, confidence = c.lang.Detect(message)
		return nil
	})
	g.Go(func() error {
		score = c.lang.Sentiment(message)
		return nil
	})
	_ = g.Wait()

	lang := st.Language
	if detected != "" {
		lang = c.lang.Resolve(detected)
		c.logger.Debug("language detected",
			"conversation_id", st.ConversationID,
			"language", lang,
			"confidence", confidence)
	}
	if lang == "" {
		lang = c.lang.Default()
	}

	// Retrieval and generation run in the pivot language.
	pivotText, translatedIn := message, true
	if lang != c.pivot {
		pivotText, translatedIn = c.lang.Translate(ctx, message, lang, c.pivot)
	}

	reply := &Reply{
		ConversationID: st.ConversationID,
		Language:       lang,
		Sentiment:      score,
		Untranslated:   !translatedIn,
	}

	wasFreeform := st.Freeform
	step, res, err := c.advance(ctx, st, message, lang)
	if err != nil {
		return reply, err
	}

	slots := mergedSlots(st.Slots, res.SlotUpdates)

	var text string
	switch {
	case res.Clarify() && step.Clarify != "":
		// No transition matched and the script knows what to ask for;
		// generation is skipped entirely.
		out, ok := c.lang.Translate(ctx, step.Clarify, c.pivot, lang)
		text = out
		reply.Untranslated = reply.Untranslated || !ok
	default:
		text, err = c.generate(ctx, st, step, slots, pivotText, message, lang, now, reply)
		if err != nil {
			return reply, err
		}
		if wasFreeform && !reply.Degraded {
			text = c.appendProverb(ctx, text, score, lang)
		}
	}

	// Commit: one user turn, one assistant turn, the advanced step and
	// the turn's metadata, all published together.
	st.AppendTurn(session.RoleUser, message, now)
	st.AppendTurn(session.RoleAssistant, text, time.Now())
	for name, value := range res.SlotUpdates {
		st.SetSlot(name, value)
	}
	st.CurrentStep = res.NextStep
	st.Freeform = st.Freeform || res.Handoff()
	st.Language = lang
	st.RecordSentiment(score)

	reply.Response = text
	c.logger.Info("turn processed",
		"conversation_id", st.ConversationID,
		"step", st.CurrentStep,
		"language", lang,
		"freeform", st.Freeform,
		"degraded", reply.Degraded)
	return reply, nil
}

// advance runs the dialog engine, or resolves the resting step directly
// once the conversation is free-form.
func (c *Coordinator) advance(ctx context.Context, st *session.State, message, lang string) (*dialog.Step, dialog.Result, error) {
	if st.Freeform {
		step, ok := c.engine.Script().Step(st.CurrentStep)
		if !ok {
			return nil, dialog.Result{}, fmt.Errorf("%w: session on unknown step %q", dialog.ErrScript, st.CurrentStep)
		}
		return step, dialog.Result{NextStep: step.ID, Step: step}, nil
	}

	res, err := c.engine.Advance(ctx, dialog.Turn{
		Step:     st.CurrentStep,
		Slots:    st.Slots,
		Input:    message,
		Language: lang,
	})
	if err != nil {
		return nil, dialog.Result{}, err
	}
	return res.Step, res, nil
}

// generate retrieves context, assembles the prompt and calls the
// completion collaborator, degrading to the step's canned text when
// generation is exhausted or the circuit is open.
func (c *Coordinator) generate(ctx context.Context, st *session.State, step *dialog.Step, slots map[string]string, pivotText, message, lang string, now time.Time, reply *Reply) (string, error) {
	chunks, err := c.retriever.Search(ctx, pivotText)
	if err != nil {
		// Retrieval is an enrichment, not a prerequisite.
		c.logger.Warn("context retrieval failed, continuing without",
			"conversation_id", st.ConversationID, "error", err)
		chunks = nil
	}

	history := append(slices.Clone(st.History), session.Turn{
		Speaker: session.RoleUser,
		Text:    message,
		At:      now,
	})

	assembled, err := c.assembler.Assemble(prompt.Request{
		Language:   lang,
		StepPrompt: step.Prompt,
		Slots:      slots,
		Chunks:     chunks,
		History:    history,
	})
	if err != nil {
		return "", err
	}

	if err := c.breaker.Allow(); err != nil {
		c.logger.Warn("circuit open, serving degraded response",
			"conversation_id", st.ConversationID)
		return c.degraded(ctx, step, slots, lang, reply), nil
	}

	genCtx := ctx
	if c.reqTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, c.reqTimeout)
		defer cancel()
	}

	text, err := c.completeWithRetry(genCtx, assembled.Text)
	if err != nil {
		if ctx.Err() != nil {
			// Caller went away; abort without committing. Not a provider
			// fault, so the breaker does not count it.
			return "", fmt.Errorf("turn canceled: %w", ctx.Err())
		}
		c.breaker.Failure()
		if errors.Is(err, ErrAuth) {
			c.logger.Error("completion rejected credentials", "error", err)
		} else {
			c.logger.Warn("generation exhausted, serving degraded response",
				"conversation_id", st.ConversationID, "error", err)
		}
		return c.degraded(ctx, step, slots, lang, reply), nil
	}
	c.breaker.Success()

	text = strings.TrimSpace(text)
	if text == "" {
		c.logger.Warn("model returned an empty response",
			"conversation_id", st.ConversationID)
		return c.degraded(ctx, step, slots, lang, reply), nil
	}

	if lang != c.pivot {
		out, ok := c.lang.Translate(ctx, text, c.pivot, lang)
		text = out
		reply.Untranslated = reply.Untranslated || !ok
	}
	return text, nil
}

// degraded renders the step's canned fallback with the collected slots
// substituted, translated for the visitor.
func (c *Coordinator) degraded(ctx context.Context, step *dialog.Step, slots map[string]string, lang string, reply *Reply) string {
	reply.Degraded = true
	text := step.Degraded
	if text == "" {
		text = apologyText
	}
	text = prompt.Substitute(text, slots)
	out, ok := c.lang.Translate(ctx, text, c.pivot, lang)
	reply.Untranslated = reply.Untranslated || !ok
	return out
}

// appendProverb closes a free-form answer with a saying matched to the
// visitor's mood. The saying is kept in Catalan for Catalan visitors
// and translated (fail-open) for everyone else; the introducing label
// is localized per language.
func (c *Coordinator) appendProverb(ctx context.Context, text string, score float64, lang string) string {
	if c.proverbs == nil {
		return text
	}
	p, ok := c.proverbs.Pick(score)
	if !ok {
		return text
	}
	line := p.Text
	if lang != "ca" {
		translated, ok := c.lang.Translate(ctx, p.Text, "ca", lang)
		switch {
		case ok:
			line = translated
		case lang == "en" && p.Gloss != "":
			line = p.Gloss
		}
	}
	return text + "\n\n" + language.ProverbLabel(lang) + " " + line
}

// mergedSlots overlays this turn's extractions on the collected slots
// without mutating either input.
func mergedSlots(collected, updates map[string]string) map[string]string {
	merged := make(map[string]string, len(collected)+len(updates))
	for k, v := range collected {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}

// sanitize strips control characters, collapses surrounding whitespace
// and caps the message length. An empty result is ErrInvalidInput.
func sanitize(message string) (string, error) {
	var b strings.Builder
	b.Grow(len(message))
	for _, r := range message {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("%w: empty message", ErrInvalidInput)
	}
	runes := []rune(out)
	if len(runes) > maxMessageRunes {
		out = string(runes[:maxMessageRunes])
	}
	return out, nil
}
