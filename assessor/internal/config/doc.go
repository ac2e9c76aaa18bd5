// Package config loads and watches the assessor configuration file (config.yaml).
//
// Top-level sections:
//   - log         mode (dev|prod) and level
//   - schedule    cron expression for scheduled runs and evaluation concurrency
//   - cooldown    window during which a freshly assessed batch is not re-assessed
//   - queue       minimum spacing between inference admissions
//   - inference   endpoint, model, api_key_env, per-attempt timeout, retries
//   - risk        whether scheduled runs fall back to the local heuristic
//   - alerts      create_on_low policy and webhook targets
//   - storage     memory | sqlite | postgres
//   - http        port for the JSON surface and /metrics
//   - safe_ranges extra catalog entries layered over the built-in table
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, log, onChange) reloads on write and hands the new Config to
// onChange; an invalid file is logged and the previous config stays active.
package config
