package ragapi

// ParseRetryAfter exports parseRetryAfter for testing.
var ParseRetryAfter = parseRetryAfter
