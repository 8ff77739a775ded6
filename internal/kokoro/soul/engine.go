package soul

import (
	"context"
	"log/slog"
	"time"

	"github.com/bdobrica/Kokoro/common/retry"
	"github.com/bdobrica/Kokoro/common/trace"
)

// writeRetry bounds re-attempts on durable-store writes. SQLite write
// failures are almost always transient lock contention, so a short backoff
// recovers most of them; whatever still fails is logged and dropped.
var writeRetry = retry.Config{
	MaxAttempts:  3,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     500 * time.Millisecond,
}

// Engine runs the checkpoint reflection flow: it pushes each new thought
// into the session's STM queue, processes any truncation fades, and when a
// push leaves a thought at the checkpoint slot, consults the oracle and
// applies the resulting fate across STM, the moral-weight counters, the
// permanent stores, and the audit log.
//
// The engine tolerates failing backends: an unreachable oracle produces the
// fallback fate, and a failed store write is retried briefly, then logged.
// A conversational turn never fails because memory bookkeeping did. The
// stores are deliberately independent; no write spans more than one of them,
// and a partial write-back is accepted rather than rolled back.
type Engine struct {
	Oracle  Oracle
	Weights MoralWeights
	Golden  GoldenMemories
	Minted  Realizations
	Audit   AuditSink
	Logger  *slog.Logger
}

// NewEngine creates an Engine with the given backends. Nil backends are
// replaced with noops so a partially wired engine still runs; a nil logger
// falls back to slog.Default().
func NewEngine(oracle Oracle, weights MoralWeights, golden GoldenMemories, minted Realizations, audit AuditSink, logger *slog.Logger) *Engine {
	if oracle == nil {
		oracle = NewNoopOracle(logger)
	}
	if weights == nil {
		weights = NewNoopMoralWeights(logger)
	}
	if golden == nil {
		golden = NewNoopGoldenMemories(logger)
	}
	if minted == nil {
		minted = NewNoopRealizations(logger)
	}
	if audit == nil {
		audit = NewNoopAuditSink(logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Oracle:  oracle,
		Weights: weights,
		Golden:  golden,
		Minted:  minted,
		Audit:   audit,
		Logger:  logger,
	}
}

// TurnResult reports what one thought's arrival set in motion.
type TurnResult struct {
	Thought    Thought
	Checkpoint *ReflectionResult
	Faded      int
}

// ReflectionResult is the outcome of a single reflection, checkpoint or
// truncation fade.
type ReflectionResult struct {
	Thought  Thought
	Decision Decision
	Score    float64
}

// ProcessTurn pushes a freshly minted thought into the session's STM and
// runs whatever reflections the push triggers. It serializes on the
// session, so turns for one persona run strictly in push order.
func (e *Engine) ProcessTurn(ctx context.Context, sess *Session, th Thought) TurnResult {
	return e.processTurnAt(ctx, sess, th, time.Now())
}

// processTurnAt is the clock-injected core of ProcessTurn.
func (e *Engine) processTurnAt(ctx context.Context, sess *Session, th Thought, now time.Time) TurnResult {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	checkpoint, faded := sess.STM.Push(th)
	res := TurnResult{Thought: th, Faded: len(faded)}

	// --- 1. Truncation fades: no oracle, fallback fate applies directly ------
	for _, f := range faded {
		e.fadeAt(ctx, sess, f, now)
	}

	// --- 2. Checkpoint reflection --------------------------------------------
	if checkpoint != nil {
		r := e.reflectAt(ctx, sess, *checkpoint, now)
		res.Checkpoint = &r
	}
	return res
}

// reflectAt decides the fate of a checkpointed thought.
func (e *Engine) reflectAt(ctx context.Context, sess *Session, th Thought, now time.Time) ReflectionResult {
	key := MemoryKey(th.Text)

	// --- 1. Prior moral history ----------------------------------------------
	prior, _, err := e.Weights.Get(ctx, key)
	if err != nil {
		e.Logger.Warn("reflection: weight lookup failed",
			"persona_id", sess.PersonaID,
			"memory_key", key,
			"err", err,
		)
		// An all-zero record stands in; the increments below still land.
		prior = MoralWeightRecord{}
	}
	prior.Key = key

	// --- 2. Decision context -------------------------------------------------
	mood := sess.Emotions.Mood()
	goldenCount, err := e.Golden.Count(ctx)
	if err != nil {
		e.Logger.Warn("reflection: golden memory count failed",
			"persona_id", sess.PersonaID,
			"err", err,
		)
		goldenCount = 0
	}

	e.Logger.Debug("reflection: thought reached the checkpoint slot",
		"persona_id", sess.PersonaID,
		"thought_id", th.ID,
		"memory_key", key,
		"prior_score", prior.Score(),
		"mood", mood,
	)

	// --- 3. Oracle -----------------------------------------------------------
	decision, err := e.Oracle.Decide(ctx, OracleRequest{
		PersonaID:   sess.PersonaID,
		ThoughtText: th.Text,
		Emotions:    th.Emotions,
		Mood:        mood,
		STMCount:    sess.STM.Len(),
		GoldenCount: goldenCount,
	})
	if err != nil {
		e.Logger.Warn("reflection: oracle decision failed, using fallback",
			"persona_id", sess.PersonaID,
			"thought_id", th.ID,
			"err", err,
		)
		decision = FallbackDecision()
	}

	return e.applyAt(ctx, sess, th, key, prior, decision, mood, now)
}

// fadeAt processes a thought evicted by truncation: same write-backs as a
// reflection, but the fallback decision stands in for the oracle.
func (e *Engine) fadeAt(ctx context.Context, sess *Session, th Thought, now time.Time) {
	key := MemoryKey(th.Text)
	prior, _, err := e.Weights.Get(ctx, key)
	if err != nil {
		e.Logger.Warn("reflection: weight lookup failed",
			"persona_id", sess.PersonaID,
			"memory_key", key,
			"err", err,
		)
		prior = MoralWeightRecord{}
	}
	prior.Key = key
	e.applyAt(ctx, sess, th, key, prior, FallbackDecision(), sess.Emotions.Mood(), now)
}

// applyAt performs the write-back for one decision: mutate STM, bump the
// moral counters, feed the permanent stores, append the audit entry.
func (e *Engine) applyAt(ctx context.Context, sess *Session, th Thought, key string, prior MoralWeightRecord, decision Decision, mood string, now time.Time) ReflectionResult {
	// Write-backs run to completion even when the surrounding turn was
	// aborted; stopping halfway would leave STM and the counters disagreeing.
	wctx := context.WithoutCancel(ctx)

	stmContext := sess.STM.Texts()
	post := prior

	// --- Fate ----------------------------------------------------------------
	switch decision.Fate {
	case FateAscended:
		sess.STM.Remove(th.ID)
		golden := GoldenMemory{
			Text:      th.Text,
			Emotions:  th.Emotions.Clone(),
			Word:      decision.Word,
			Note:      decision.Reasoning,
			CreatedAt: now,
		}
		e.persist(wctx, "golden memory append", func() error {
			return e.Golden.Append(wctx, golden)
		}, "persona_id", sess.PersonaID, "thought_id", th.ID)
		e.increment(wctx, sess, key, CounterAscended)
		post = post.bump(CounterAscended)

		if decision.Realization != nil {
			r := Realization{
				Word:         decision.Realization.Word,
				Definition:   decision.Realization.FaceDescription,
				ColorHex:     decision.Realization.ColorHex,
				Emotions:     th.Emotions.Clone(),
				TimesFelt:    1,
				DiscoveredAt: now,
			}
			e.persist(wctx, "self-realization append", func() error {
				return e.Minted.Append(wctx, r)
			}, "persona_id", sess.PersonaID, "word", r.Word)
			e.Logger.Info("self-realization discovered",
				"persona_id", sess.PersonaID,
				"word", r.Word,
				"color", r.ColorHex,
			)
		}

	case FatePromoted:
		if !sess.STM.Promote(th.ID) {
			e.Logger.Debug("reflection: promoted thought no longer queued",
				"persona_id", sess.PersonaID,
				"thought_id", th.ID,
			)
		}
		e.increment(wctx, sess, key, CounterPromoted)
		post = post.bump(CounterPromoted)

	default:
		sess.STM.Remove(th.ID)
		e.increment(wctx, sess, key, CounterRejected)
		post = post.bump(CounterRejected)
	}

	// --- Felt: exactly once per reflection, whatever the fate ----------------
	e.increment(wctx, sess, key, CounterFelt)
	post = post.bump(CounterFelt)
	score := post.Score()

	// --- Audit ---------------------------------------------------------------
	entry := AuditEntry{
		TraceID:     trace.FromContext(ctx),
		PersonaID:   sess.PersonaID,
		MemoryID:    th.ID,
		ThoughtText: th.Text,
		Word:        decision.Word,
		Fate:        decision.Fate,
		Reasoning:   decision.Reasoning,
		Context:     stmContext,
		Mood:        mood,
		Score:       score,
		Timestamp:   now,
	}
	e.persist(wctx, "audit append", func() error {
		return e.Audit.Append(wctx, entry)
	}, "persona_id", sess.PersonaID, "thought_id", th.ID)

	e.Logger.Info("reflection complete",
		"persona_id", sess.PersonaID,
		"thought_id", th.ID,
		"fate", string(decision.Fate),
		"word", decision.Word,
		"memory_key", key,
		"score", score,
		"stm_len", sess.STM.Len(),
	)

	return ReflectionResult{Thought: th, Decision: decision, Score: score}
}

// increment bumps one moral counter with bounded retries; failures are
// logged and dropped.
func (e *Engine) increment(ctx context.Context, sess *Session, key string, c Counter) {
	err := retry.Do(ctx, writeRetry, func() error {
		return e.Weights.Increment(ctx, key, c)
	})
	if err != nil {
		e.Logger.Warn("reflection: counter increment failed",
			"persona_id", sess.PersonaID,
			"memory_key", key,
			"counter", string(c),
			"err", err,
		)
	}
}

// persist runs one durable write with bounded retries; failures are logged
// and dropped.
func (e *Engine) persist(ctx context.Context, what string, fn func() error, attrs ...any) {
	if err := retry.Do(ctx, writeRetry, fn); err != nil {
		e.Logger.Warn("reflection: "+what+" failed", append(attrs, "err", err)...)
	}
}
