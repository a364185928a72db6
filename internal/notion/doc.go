// Package notion is a minimal client for the private Notion web API used to
// pull a published page: loadPageChunk for the page body and
// syncRecordValues for blocks the chunked response left out.
package notion
