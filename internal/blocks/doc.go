// Package blocks models the Notion record graph fetched for one page: the
// record envelope, the block node, an insertion-ordered block map whose JSON
// form keeps key order, and a typed view over the loosely typed
// arrays-of-arrays properties. Unknown JSON fields survive a decode/encode
// round trip so cached snapshots stay byte-compatible with what the upstream
// returned. A small registry maps block type keys to their property variant.
package blocks
