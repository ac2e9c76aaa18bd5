// Package risk computes spoilage risk scores and writes them back to batches.
//
// score.go holds the pure local heuristic: a time component from the days of
// shelf life left plus an environment component from the latest reading's
// deviation against the warehouse setpoint, capped at 100.
//
// engine.go writes either the local score or a normalised inference result.
// Every write sets score, level, LastAnalyzedAt and CooldownUntil together;
// the level is always types.LevelForScore of the stored score.
package risk
