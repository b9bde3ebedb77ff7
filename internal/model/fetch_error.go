package model

import (
	"errors"
	"fmt"
	"net/http"
)

// FetchErrorKind classifies why a page could not be turned into content.
type FetchErrorKind string

const (
	// FetchTimeout means the request exceeded the job timeout.
	FetchTimeout FetchErrorKind = "timeout"

	// FetchConnection covers DNS failures, refused connections and resets.
	FetchConnection FetchErrorKind = "connection"

	// FetchHTTPStatus means the server answered with a non-2xx status.
	FetchHTTPStatus FetchErrorKind = "http-status"

	// FetchUnsupportedContent means the content type has no extraction strategy.
	FetchUnsupportedContent FetchErrorKind = "unsupported-content-type"

	// FetchExtraction means the body was received but could not be extracted.
	FetchExtraction FetchErrorKind = "extraction"

	// FetchRedirect means a redirect pointed out of scope or to a URL
	// robots.txt disallows, and was not followed.
	FetchRedirect FetchErrorKind = "redirect"
)

// FetchError is a per-page failure. It never aborts a crawl; the scheduler
// records it as a failed PageResult.
type FetchError struct {
	// Kind is the failure class.
	Kind FetchErrorKind

	// URL is the URL that failed.
	URL string

	// StatusCode is set for FetchHTTPStatus.
	StatusCode int

	// ContentType is set for FetchUnsupportedContent.
	ContentType string

	// Err is the underlying error, if any.
	Err error
}

// Error returns the reason string recorded in the crawl report.
// For HTTP status failures the status code always appears in the text.
func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	case FetchUnsupportedContent:
		if e.ContentType == "" {
			return "unsupported content type"
		}
		return "unsupported content type: " + e.ContentType
	case FetchTimeout:
		return "timeout: " + errText(e.Err)
	case FetchConnection:
		return "connection error: " + errText(e.Err)
	case FetchExtraction:
		return "extraction failed: " + errText(e.Err)
	case FetchRedirect:
		return errText(e.Err)
	default:
		return errText(e.Err)
	}
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchErrorKind reports whether err is a FetchError of the given kind.
func IsFetchErrorKind(err error, kind FetchErrorKind) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
