// Package report provides the business boundary for CivicSense's report
// triage system. It defines the Service (ingest, async verification,
// lifecycle actions), Engine (pure orchestration over the collaborators),
// Store interface (persistence), the priority and duplicate policies, and
// the domain models.
package report
