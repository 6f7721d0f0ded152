// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Handlers answer with one of two envelopes: {"success": "..."} for
// completed actions and {"error": "..."} for failures, or with a plain JSON
// payload for reads. File downloads go through Attachment.
package httputil
