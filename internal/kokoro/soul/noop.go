package soul

import (
	"context"
	"log/slog"
)

// NoopOracle answers every Decide call with the fallback decision: the
// thought fades. This is the default oracle until a real provider is wired
// in, and the path the daemon takes when it runs without an API key.
type NoopOracle struct {
	logger *slog.Logger
}

// NewNoopOracle creates a NoopOracle that logs decisions at DEBUG level.
// If logger is nil, the default slog logger is used.
func NewNoopOracle(logger *slog.Logger) *NoopOracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopOracle{logger: logger}
}

// Decide returns the fallback decision without consulting anything.
func (n *NoopOracle) Decide(_ context.Context, req OracleRequest) (Decision, error) {
	n.logger.Debug("oracle noop: defaulting to fallback fate",
		"persona_id", req.PersonaID,
		"stm_count", req.STMCount,
	)
	return FallbackDecision(), nil
}

// NoopMoralWeights discards increments and reports every key as unseen.
type NoopMoralWeights struct {
	logger *slog.Logger
}

// NewNoopMoralWeights creates a NoopMoralWeights.
func NewNoopMoralWeights(logger *slog.Logger) *NoopMoralWeights {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopMoralWeights{logger: logger}
}

// Get reports every key as absent.
func (n *NoopMoralWeights) Get(_ context.Context, key string) (MoralWeightRecord, bool, error) {
	return MoralWeightRecord{Key: key}, false, nil
}

// Increment logs the discarded bump at DEBUG level.
func (n *NoopMoralWeights) Increment(_ context.Context, key string, c Counter) error {
	n.logger.Debug("weights noop: discarding increment",
		"memory_key", key,
		"counter", string(c),
	)
	return nil
}

// NoopGoldenMemories discards appended memories and reports a zero count.
type NoopGoldenMemories struct {
	logger *slog.Logger
}

// NewNoopGoldenMemories creates a NoopGoldenMemories.
func NewNoopGoldenMemories(logger *slog.Logger) *NoopGoldenMemories {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopGoldenMemories{logger: logger}
}

// Append logs the discarded memory at DEBUG level.
func (n *NoopGoldenMemories) Append(_ context.Context, m GoldenMemory) error {
	n.logger.Debug("golden noop: discarding ascended thought",
		"word", m.Word,
		"text_len", len(m.Text),
	)
	return nil
}

// Count always reports zero.
func (n *NoopGoldenMemories) Count(_ context.Context) (int, error) {
	return 0, nil
}

// NoopRealizations discards appended realizations.
type NoopRealizations struct {
	logger *slog.Logger
}

// NewNoopRealizations creates a NoopRealizations.
func NewNoopRealizations(logger *slog.Logger) *NoopRealizations {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopRealizations{logger: logger}
}

// Append logs the discarded realization at DEBUG level.
func (n *NoopRealizations) Append(_ context.Context, r Realization) error {
	n.logger.Debug("realizations noop: discarding discovery",
		"word", r.Word,
	)
	return nil
}

// NoopAuditSink discards audit entries.
type NoopAuditSink struct {
	logger *slog.Logger
}

// NewNoopAuditSink creates a NoopAuditSink.
func NewNoopAuditSink(logger *slog.Logger) *NoopAuditSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopAuditSink{logger: logger}
}

// Append logs the discarded entry at DEBUG level.
func (n *NoopAuditSink) Append(_ context.Context, e AuditEntry) error {
	n.logger.Debug("audit noop: discarding reflection entry",
		"persona_id", e.PersonaID,
		"fate", string(e.Fate),
	)
	return nil
}

// Compile-time interface satisfaction checks.
var (
	_ Oracle         = (*NoopOracle)(nil)
	_ MoralWeights   = (*NoopMoralWeights)(nil)
	_ GoldenMemories = (*NoopGoldenMemories)(nil)
	_ Realizations   = (*NoopRealizations)(nil)
	_ AuditSink      = (*NoopAuditSink)(nil)
)
