package retry

import "strings"

// Classification is the verdict for a failed delivery attempt.
type Classification struct {
	Retryable bool
	Reason    string
}

// Classify maps a transport outcome to a retry decision. Rules are checked
// in order: rate limiting and server-side/network failures are retryable,
// anything resembling a bad request is permanent, and unclassified errors
// default to permanent so they cannot burn the attempt budget.
func Classify(httpStatus int, errMsg string) Classification {
	lower := strings.ToLower(errMsg)

	if httpStatus == 429 || httpStatus >= 500 ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "fetch") ||
		strings.Contains(lower, "network") {
		return Classification{Retryable: true, Reason: reasonOr(errMsg, "retryable error")}
	}

	switch httpStatus {
	case 400, 401, 403, 404:
		return Classification{Retryable: false, Reason: reasonOr(errMsg, "non-retryable error")}
	}
	if strings.Contains(lower, "invalid") || strings.Contains(lower, "not found") {
		return Classification{Retryable: false, Reason: reasonOr(errMsg, "non-retryable error")}
	}

	return Classification{Retryable: false, Reason: reasonOr(errMsg, "unknown error")}
}

func reasonOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
