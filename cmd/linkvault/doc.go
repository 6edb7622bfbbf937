// Package main hosts the linkvault entrypoint.
//
// The binary loads configuration through Viper (a YAML file passed with
// -config plus LINKVAULT_* environment overrides), builds the application in
// internal/server and serves HTTP until SIGINT or SIGTERM.
//
// Request flow:
//   - internal/api routes /api/bookmarks, /snapshot/{id}, /favicon/{id} and the
//     static UI, guarded by the optional password gate in internal/auth.
//   - internal/bookmark enforces URL uniqueness before any outbound fetch and
//     hands new URLs to internal/capture.
//   - internal/capture fetches the title, an HTML snapshot and the favicon
//     concurrently. Each step degrades on its own: a failed title falls back
//     to the URL, failed artifacts are simply left unset.
//   - Rows live in Postgres (or memory); artifacts live in the configured blob
//     store (local disk, GCS, S3 or memory).
//
// Run locally: go run ./cmd/linkvault -config config.yaml
package main
