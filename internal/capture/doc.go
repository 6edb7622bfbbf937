// Package capture runs the best-effort metadata pipeline for a new
// bookmark: the page title, an HTML snapshot and the site favicon.
//
// Each step degrades on its own. Upstream failures are logged at debug level
// and surface only as a fallback title or a missing artifact key; they never
// fail bookmark creation.
package capture
