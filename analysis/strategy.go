package analysis

import (
	"clipsight/config"
)

// Strategy is the transmission encoding chosen for one invocation.
type Strategy int

const (
	// StrategyEmbedded sends the video base64-encoded inside the
	// inference request.
	StrategyEmbedded Strategy = iota
	// StrategyStaged uploads the video out of band and references it by
	// handle in the inference request.
	StrategyStaged
)

func (s Strategy) String() string {
	if s == StrategyStaged {
		return "staged"
	}
	return "embedded"
}

// SelectStrategy partitions files by size: small files are embedded,
// large ones staged. The decision is made once per invocation; the only
// later change is the explicit staged-to-embedded fallback.
func SelectStrategy(cfg config.AnalysisConfig, size int64) Strategy {
	if size < cfg.InlineThreshold {
		return StrategyEmbedded
	}
	return StrategyStaged
}

// canFallbackInline reports whether a file that failed the staged path may
// still be embedded. Above the fallback ceiling the inflated request would
// be rejected outright, so the original failure is surfaced instead.
func canFallbackInline(cfg config.AnalysisConfig, size int64) bool {
	return size <= cfg.InlineFallbackCeiling
}
