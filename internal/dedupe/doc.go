// Package dedupe provides the seen-id index that makes history replay,
// live notifications, and optimistic local sends safe to overlap without
// ever materializing the same message twice.
package dedupe
