// Package projectstore persists archived stories to a user-chosen project
// directory and keeps small session state (the remembered directory, the
// saved credential, fallback records) in a SQLite key-value store. Access to
// the project directory goes through a validated capability handle so a
// deleted or permission-revoked folder degrades cleanly instead of failing
// deep inside a save.
package projectstore
