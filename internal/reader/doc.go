// Package reader is the client-side triage, analysis and capture engine.
// It owns the source and feed caches (SourceRegistry, FeedStore), derives
// the browsable working set (TriageEngine), drives the per-item analysis
// lifecycle (AnalysisWorkflow), turns an analyzed item into a vault note
// (VaultCapture) and reconciles pulls from the backend (SyncOrchestrator).
//
// All network access goes through the Backend interfaces, which are
// implemented by internal/apiclient in production and by fakes in tests.
package reader
