// Package orchestrator runs the query-resolution pipeline for one user turn:
// inbound guardrail, concurrent context gathering (history, profile,
// retrieval), freshness fallback, composition, outbound guardrail, and
// atomic persistence of the user/assistant turn pair.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/advisor/internal/compose"
	"github.com/campuskit/advisor/internal/config"
	"github.com/campuskit/advisor/internal/conversation"
	"github.com/campuskit/advisor/internal/guardrail"
	"github.com/campuskit/advisor/internal/observability"
	"github.com/campuskit/advisor/internal/profile"
	"github.com/campuskit/advisor/internal/reliability"
	"github.com/campuskit/advisor/internal/retrieval"
	"github.com/campuskit/advisor/internal/websearch"
)

const meetingConfirmation = "I've raised a meeting request with a student advisor for you. " +
	"You'll receive a confirmation with the time and place shortly."

// Inbound is one user message entering the pipeline.
type Inbound struct {
	UserID     string
	Text       string
	ReceivedAt time.Time
}

// Outbound is the reply produced for one inbound message.
type Outbound struct {
	TurnID        string                  `json:"turn_id"`
	UserID        string                  `json:"user_id"`
	Text          string                  `json:"text"`
	Blocked       bool                    `json:"blocked,omitempty"`
	ReasonCode    string                  `json:"reason_code,omitempty"`
	LowConfidence bool                    `json:"low_confidence,omitempty"`
	Citations     []conversation.Citation `json:"citations,omitempty"`
}

// Deps are the collaborators a turn runs against.
type Deps struct {
	Store     conversation.Store
	Retriever retrieval.Retriever
	Searcher  websearch.Searcher
	Profiles  profile.Source
	Composer  compose.Composer
	Gate      *guardrail.Gate
	Metrics   *observability.Metrics
}

type Orchestrator struct {
	cfg       config.Config
	store     conversation.Store
	retriever retrieval.Retriever
	searcher  websearch.Searcher
	profiles  profile.Source
	composer  compose.Composer
	gate      *guardrail.Gate
	metrics   *observability.Metrics
	queue     *Queue
}

func New(cfg config.Config, deps Deps) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		store:     deps.Store,
		retriever: deps.Retriever,
		searcher:  deps.Searcher,
		profiles:  deps.Profiles,
		composer:  deps.Composer,
		gate:      deps.Gate,
		metrics:   deps.Metrics,
		queue:     NewQueue(2 * time.Minute),
	}
	if o.searcher == nil {
		o.searcher = websearch.Disabled{}
	}
	if m := o.metrics; m != nil {
		o.queue.SetCountHook(func(n int) { m.ActiveUserQueues.Set(float64(n)) })
	}
	return o
}

// Start launches background maintenance. It returns immediately; workers
// stop when ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	o.queue.StartJanitor(ctx, 30*time.Second)
}

// HandleMessage enqueues the message on the user's lane and waits for the
// reply. Messages from one user are processed strictly in arrival order.
// When ctx is cancelled before the turn finishes, the reply is dropped but
// the turn still runs to completion in the background so the conversation
// record stays consistent.
func (o *Orchestrator) HandleMessage(ctx context.Context, in Inbound) (Outbound, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return Outbound{}, fmt.Errorf("missing user id")
	}
	if strings.TrimSpace(in.Text) == "" {
		return Outbound{}, fmt.Errorf("empty message")
	}
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = time.Now().UTC()
	}

	type result struct {
		out Outbound
		err error
	}
	done := make(chan result, 1)

	// The turn budget starts when the lane picks the job up, not at submit
	// time, so queueing behind earlier turns does not eat into it. The base
	// context is detached from the caller so the turn survives a hang-up.
	base := context.WithoutCancel(ctx)
	if err := o.queue.Submit(in.UserID, func() {
		turnCtx, cancel := context.WithTimeout(base, o.cfg.TurnTimeout)
		defer cancel()
		out, err := o.runTurn(turnCtx, in)
		done <- result{out, err}
	}); err != nil {
		return Outbound{}, err
	}

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		return Outbound{}, ctx.Err()
	}
}

func (o *Orchestrator) runTurn(ctx context.Context, in Inbound) (Outbound, error) {
	start := time.Now()
	userTurnID := uuid.NewString()
	query := strings.TrimSpace(in.Text)

	gateStart := time.Now()
	verdict := o.gate.Evaluate(query, guardrail.Inbound, guardrail.Context{})
	o.observeStage(observability.StageGuardrailIn, gateStart)
	o.recordVerdict(guardrail.Inbound, verdict)

	if verdict.Decision == guardrail.DecisionBlock {
		refusal := verdict.Message
		if refusal == "" {
			refusal = o.cfg.RefusalTemplate
		}
		out := Outbound{
			TurnID:     userTurnID,
			UserID:     in.UserID,
			Text:       refusal,
			Blocked:    true,
			ReasonCode: verdict.ReasonCode,
		}
		if err := o.persistPair(ctx, in, userTurnID, query, verdict.ReasonCode, conversation.Turn{
			Role:        conversation.RoleAssistant,
			Text:        refusal,
			BlockReason: verdict.ReasonCode,
		}); err != nil {
			o.finishTurn(observability.OutcomeFailed, start)
			return Outbound{}, err
		}
		o.finishTurn(observability.OutcomeBlockedInbound, start)
		return out, nil
	}
	if verdict.Decision == guardrail.DecisionRewrite {
		// The redacted text replaces the original everywhere, including
		// the persisted user turn. Raw PII is never stored.
		query = verdict.RewrittenText
	}

	history, prof, primary := o.gatherContext(ctx, in.UserID, query)

	var fresh []retrieval.Result
	if trigger := o.fallbackTrigger(query, primary); trigger != "" {
		o.recordFallback(trigger)
		fbStart := time.Now()
		fresh = o.searcher.Search(ctx, query, o.cfg.SearchMaxResults)
		o.observeStage(observability.StageFallback, fbStart)
	}

	merged := retrieval.Merge(primary, fresh, o.cfg.MaxCombinedCitations)
	topScore := retrieval.TopScore(merged)
	o.observeTopScore(topScore)

	var (
		reply         string
		lowConfidence bool
		citations     []conversation.Citation
		outcome       = observability.OutcomeAnswered
	)

	switch {
	case o.tryIntent(ctx, in.UserID, userTurnID, query, &reply, &outcome):
		// reply and outcome set by the intent path

	case len(merged) == 0 || topScore < o.cfg.MinRelevanceScore:
		// A hedged reply carries no citations; sub-threshold passages are
		// not presented as evidence. The score still reaches the histogram.
		reply = o.cfg.HedgeTemplate
		lowConfidence = true
		outcome = observability.OutcomeHedged

	default:
		composeStart := time.Now()
		text, err := o.composer.Compose(ctx, compose.Input{
			Query:   query,
			History: history,
			Profile: prof,
			Results: merged,
		})
		o.observeStage(observability.StageCompose, composeStart)
		if err != nil {
			log.Printf("orchestrator: compose failed, hedging: %v", err)
			reply = o.cfg.HedgeTemplate
			lowConfidence = true
			outcome = observability.OutcomeHedged
		} else {
			reply = text
			citations = toCitations(merged)
		}
	}

	gateStart = time.Now()
	outVerdict := o.gate.Evaluate(reply, guardrail.Outbound, guardrail.Context{
		Sources: groundingSources(query, merged, prof),
		Query:   query,
	})
	o.observeStage(observability.StageGuardrailOut, gateStart)
	o.recordVerdict(guardrail.Outbound, outVerdict)

	blocked := false
	blockReason := ""
	switch outVerdict.Decision {
	case guardrail.DecisionBlock:
		log.Printf("orchestrator: outbound reply blocked (%s) for user %s", outVerdict.ReasonCode, in.UserID)
		reply = o.cfg.RefusalTemplate
		blocked = true
		blockReason = outVerdict.ReasonCode
		lowConfidence = false
		citations = nil
		outcome = observability.OutcomeBlockedOutbound
	case guardrail.DecisionRewrite:
		reply = outVerdict.RewrittenText
	}

	if err := o.persistPair(ctx, in, userTurnID, query, "", conversation.Turn{
		Role:          conversation.RoleAssistant,
		Text:          reply,
		Citations:     citations,
		LowConfidence: lowConfidence,
		BlockReason:   blockReason,
	}); err != nil {
		o.finishTurn(observability.OutcomeFailed, start)
		return Outbound{}, err
	}

	o.finishTurn(outcome, start)
	return Outbound{
		TurnID:        userTurnID,
		UserID:        in.UserID,
		Text:          reply,
		Blocked:       blocked,
		ReasonCode:    blockReason,
		LowConfidence: lowConfidence,
		Citations:     citations,
	}, nil
}

// gatherContext fans out to history, profile and retrieval concurrently,
// each under its own deadline. All three degrade to empty on failure; the
// turn itself never fails on a read.
func (o *Orchestrator) gatherContext(ctx context.Context, userID, query string) ([]conversation.Turn, profile.Profile, []retrieval.Result) {
	var (
		history []conversation.Turn
		prof    profile.Profile
		primary []retrieval.Result
		wg      sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		turns, err := o.store.Recent(ctx, userID, o.cfg.ConversationWindowSize)
		if err != nil {
			log.Printf("orchestrator: history read degraded to empty: %v", err)
			return
		}
		history = turns
	}()
	go func() {
		defer wg.Done()
		stageStart := time.Now()
		defer o.observeStage(observability.StageProfile, stageStart)

		pctx, cancel := context.WithTimeout(ctx, o.cfg.ProfileTimeout)
		defer cancel()
		p, err := o.profiles.FetchProfile(pctx, userID)
		if err != nil {
			o.recordProviderError("crm", "fetch_profile")
			log.Printf("orchestrator: profile fetch degraded to empty: %v", err)
			return
		}
		prof = p
	}()
	go func() {
		defer wg.Done()
		stageStart := time.Now()
		defer o.observeStage(observability.StageRetrieval, stageStart)
		primary = o.retrievePrimary(ctx, query)
	}()
	wg.Wait()

	return history, prof, primary
}

// retrievePrimary queries the knowledge index, retrying once on a transient
// failure before degrading to no grounding.
func (o *Orchestrator) retrievePrimary(ctx context.Context, query string) []retrieval.Result {
	for attempt := 0; ; attempt++ {
		rctx, cancel := context.WithTimeout(ctx, o.cfg.RetrieverTimeout)
		results, err := o.retriever.Retrieve(rctx, query, o.cfg.RetrievalTopK)
		cancel()
		if err == nil {
			return results
		}
		o.recordProviderError("knowledge_index", "retrieve")
		if attempt == 0 && reliability.IsTransient(err) {
			time.Sleep(reliability.ExponentialBackoff(attempt, 50*time.Millisecond, 500*time.Millisecond))
			continue
		}
		log.Printf("orchestrator: retrieval degraded to empty: %v", err)
		return nil
	}
}

// fallbackTrigger returns the reason fresh results are needed, or "" when
// the index alone is enough.
func (o *Orchestrator) fallbackTrigger(query string, primary []retrieval.Result) string {
	switch {
	case len(primary) == 0:
		return "empty_index"
	case retrieval.TopScore(primary) < o.cfg.FallbackConfidenceThreshold:
		return "low_confidence"
	case timeSensitive(query):
		return "time_sensitive"
	}
	return ""
}

// tryIntent handles actionable requests. The confirmation (or failure
// notice) becomes the reply; retrieval evidence is not cited on these turns.
// The idempotency key is derived from the user turn id, so a retried submit
// for the same turn can never double-book.
func (o *Orchestrator) tryIntent(ctx context.Context, userID, userTurnID, query string, reply *string, outcome *string) bool {
	intent, ok := detectIntent(query)
	if !ok {
		return false
	}

	pending, err := o.profiles.SubmitIntent(ctx, userID, intent, "intent-"+userTurnID)
	if err != nil {
		o.recordProviderError("crm", "submit_intent")
		o.recordIntent(intent.Type, "failed")
		log.Printf("orchestrator: intent submit failed for user %s: %v", userID, err)
		*reply = o.cfg.ApologyTemplate
		*outcome = observability.OutcomeFailed
		return true
	}

	o.recordIntent(intent.Type, string(pending.Status))
	*reply = meetingConfirmation
	return true
}

// persistPair writes the user turn and the assistant turn as one atomic
// append. A store write failure fails the whole turn: a reply must never be
// delivered without its record.
func (o *Orchestrator) persistPair(ctx context.Context, in Inbound, userTurnID, userText, userBlockReason string, assistant conversation.Turn) error {
	stageStart := time.Now()
	defer o.observeStage(observability.StagePersist, stageStart)

	userAt := in.ReceivedAt.UTC()
	assistant.UserID = in.UserID
	// Strictly increasing timestamps keep the pair ordered under the
	// store's created_at sort.
	assistant.CreatedAt = userAt.Add(time.Microsecond)

	pair := []conversation.Turn{
		{
			ID:          userTurnID,
			UserID:      in.UserID,
			Role:        conversation.RoleUser,
			Text:        userText,
			BlockReason: userBlockReason,
			CreatedAt:   userAt,
		},
		assistant,
	}
	if err := o.store.AppendTurns(ctx, in.UserID, pair); err != nil {
		return fmt.Errorf("persist turn pair: %w", err)
	}
	return nil
}

func toCitations(results []retrieval.Result) []conversation.Citation {
	if len(results) == 0 {
		return nil
	}
	out := make([]conversation.Citation, 0, len(results))
	for _, r := range results {
		out = append(out, conversation.Citation{
			SourceKind: r.SourceKind,
			SourceRef:  r.SourceRef,
			Score:      r.Score,
		})
	}
	return out
}

// groundingSources collects everything the outbound gate may treat a reply
// as grounded in: the evidence passages and refs, known profile facts, and
// the query itself.
func groundingSources(query string, merged []retrieval.Result, prof profile.Profile) []string {
	sources := make([]string, 0, len(merged)*2+len(prof.Attributes)+1)
	sources = append(sources, query)
	for _, r := range merged {
		sources = append(sources, r.Passage, r.SourceRef)
	}
	for _, v := range prof.Attributes {
		sources = append(sources, v)
	}
	return sources
}

func (o *Orchestrator) finishTurn(outcome string, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	o.metrics.ObserveTurnLatency(time.Since(start))
}

func (o *Orchestrator) observeStage(stage string, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveStage(stage, time.Since(start))
}

func (o *Orchestrator) observeTopScore(score float64) {
	if o.metrics == nil {
		return
	}
	o.metrics.RetrievalTopScore.Observe(score)
}

func (o *Orchestrator) recordVerdict(dir guardrail.Direction, v guardrail.Verdict) {
	if o.metrics == nil {
		return
	}
	o.metrics.GuardrailVerdicts.WithLabelValues(string(dir), string(v.Decision), v.ReasonCode).Inc()
}

func (o *Orchestrator) recordProviderError(provider, code string) {
	if o.metrics == nil {
		return
	}
	o.metrics.ProviderErrors.WithLabelValues(provider, code).Inc()
}

func (o *Orchestrator) recordFallback(trigger string) {
	if o.metrics == nil {
		return
	}
	o.metrics.FallbackSearches.WithLabelValues(trigger).Inc()
	o.metrics.Stages.ObserveIndicator("fallback_" + trigger)
}

func (o *Orchestrator) recordIntent(intentType, status string) {
	if o.metrics == nil {
		return
	}
	o.metrics.IntentSubmissions.WithLabelValues(intentType, status).Inc()
}
