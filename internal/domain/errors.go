package domain

import "errors"

var (
	// ErrInvalidRequest signals a malformed pipeline or HTTP request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrExtractionFailed signals a term-extraction service failure.
	ErrExtractionFailed = errors.New("term extraction failed")
	// ErrCompletionFailed signals a language-model completion failure.
	ErrCompletionFailed = errors.New("completion failed")
	// ErrRetrievalFailed signals a search-engine transport or parse failure.
	ErrRetrievalFailed = errors.New("retrieval failed")
	// ErrHybridSearchNotSupported signals that the backend cannot fuse lexical and vector results.
	ErrHybridSearchNotSupported = errors.New("hybrid search not supported by backend")
	// ErrFactStoreUnavailable signals a fact-store lookup or write failure.
	ErrFactStoreUnavailable = errors.New("fact store unavailable")
)
