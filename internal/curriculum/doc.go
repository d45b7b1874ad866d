// Package curriculum models the static learning material consumed by lesson
// controllers: units, the ordered registries that group them into modules,
// and the catalog that links modules into a reading order. Everything in this
// package is immutable once constructed; progress lives in package lesson.
package curriculum
