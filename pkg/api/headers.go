package api

const (
	// HeaderJobID is header carrying the job identifier
	HeaderJobID = "X-Job-ID"
	// HeaderUserID is header carrying the authenticated caller identity
	HeaderUserID = "X-User-ID"
	// HeaderType is header for the notification type
	HeaderType = "x-type"
	// HeaderRequestID is header for the request identifier
	HeaderRequestID = "X-Request-ID"
)
