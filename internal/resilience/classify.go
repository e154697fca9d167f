package resilience

import (
	"errors"
)

// ErrorKind is the coarse category of a failed external call.
type ErrorKind string

const (
	KindTransport   ErrorKind = "transport"
	KindRateLimited ErrorKind = "rate_limited"
	KindParse       ErrorKind = "parse"
	KindDisabled    ErrorKind = "disabled"
	KindOther       ErrorKind = "other"
)

// Classify maps err onto an ErrorKind for logging and run error reports.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrChannelDisabled):
		return KindDisabled
	case IsRateLimited(err):
		return KindRateLimited
	case IsParse(err):
		return KindParse
	case IsTransient(err):
		return KindTransport
	default:
		return KindOther
	}
}
