// Package inference calls the external risk-inference service.
//
// The service is an OpenAI-compatible Responses endpoint. Every call sends a
// fixed instruction string, a JSON payload describing the batch, and a strict
// json_schema output format; the reply must carry exactly the five fields of
// types.RiskResult.
//
// Each Assess call makes up to MaxRetries+1 attempts. Attempts are bounded by
// a per-attempt timeout and separated by a linear backoff of attempt×base
// delay. A reply that arrives but does not match the schema fails immediately
// with apperr.InvalidResponse; exhausting the attempts fails with
// apperr.ServiceUnavailable wrapping an *ExhaustedError.
package inference
