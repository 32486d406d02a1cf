// Package domain defines core data models and interfaces shared across the app.
// It contains plain types (wire/state) and contracts (interfaces) only; the
// concrete definitions live in the types and interfaces subpackages and are
// aliased here.
package domain
