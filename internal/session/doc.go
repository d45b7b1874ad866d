// Package session hosts lesson controllers behind opaque session ids. Each
// session owns one lesson.Controller and a mutex that serialises every
// operation on it, so a controller only ever sees one event at a time.
//
// Controller hooks are translated here: unit and module transitions become
// progress events, module completion marks the node tracker in the
// background, and next-module navigation opens a fresh session for the
// target module. Idle sessions are discarded by Sweep.
package session
