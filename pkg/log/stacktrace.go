package log

import (
	"github.com/cockroachdb/errors"
)

// extractStacktrace returns the first safe detail recorded by cockroachdb/errors,
// which holds the stack captured at WithStack time. GetSafeDetails only reads
// one layer, so hint and message wrappers above the stack are skipped.
func extractStacktrace(err error) string {
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if d := errors.GetSafeDetails(e).SafeDetails; len(d) > 0 && d[0] != "" {
			return d[0]
		}
	}
	return ""
}

func extractHints(err error) []string {
	return errors.GetAllHints(err)
}

// unwrapAll returns the innermost cause, used to report the error type.
func unwrapAll(err error) error {
	return errors.UnwrapAll(err)
}
