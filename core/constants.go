package core

import "errors"

// HTTP header constants
const (
	HeaderContentType = "Content-Type"
	HeaderConnection  = "Connection"
	HeaderKeepAlive   = "Keep-Alive"
	HeaderAccept      = "Accept"
)

// Keep-alive header values sent with every kept-alive response.
const (
	KeepAliveTimeout = "timeout=5, max=99"
	ConnKeepAlive    = "keep-alive"
	ConnClose        = "close"
)

// DefaultMimeType is sent when no handler set a content type.
const DefaultMimeType = "text/html"

// Error definitions
var (
	ErrServerStarted = errors.New("server already started")
	ErrServerClosed  = errors.New("server closed")
)
