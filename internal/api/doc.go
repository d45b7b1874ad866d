// Package api hosts the HTTP server, middleware, and REST handlers a UI shell
// uses to drive lesson sessions. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/modules and POST /v1/modules/{module_id}/sessions to browse the
//     catalog and open a session.
//   - POST /v1/sessions/{session_id}/select|advance|retreat|complete|next to
//     drive a session; each returns the rendered view.
//   - GET /v1/ledger/sessions... for completion history via the
//     ProgressRepository interface.
//   - GET /v1/learners/{learner_id}/nodes for the node tracker.
package api
