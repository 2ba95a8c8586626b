package catalog

// Headers names the header for each role the SDK sends.
type Headers struct {
	Authorization string
	ContentType   string
	Accept        string
	APIKey        string
	Signature     string
	Timestamp     string
	RequestID     string
}

// DefaultHeaders returns the header names used by the identity service.
func DefaultHeaders() Headers {
	return Headers{
		Authorization: "Authorization",
		ContentType:   "Content-Type",
		Accept:        "Accept",
		APIKey:        "X-API-Key",
		Signature:     "X-Signature",
		Timestamp:     "X-Timestamp",
		RequestID:     "X-Request-ID",
	}
}

// ContentTypeJSON is the content type of every non-multipart body.
const ContentTypeJSON = "application/json"
