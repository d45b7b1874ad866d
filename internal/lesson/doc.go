// Package lesson implements the sequential module progress controller: it
// turns a curriculum.Registry into a stateful learning flow with an active
// unit, a monotonically growing completed set, derived progress, and
// directional navigation. Render maps controller state to a display
// descriptor for tabbed or single-content presentation.
//
// Every operation is total. Unknown unit ids and navigation past either end
// degrade to no-ops; nothing returns an error or panics. A Controller is
// driven by one event loop and is not safe for concurrent use; callers that
// share one across goroutines must serialize access.
package lesson
