package conn

import (
	"strings"

	"github.com/go-bolt/boltconn/internal/boerrs"
)

// classification is the outcome of matching a server FAILURE code against
// the taxonomy table: the error Kind to surface, and whether the
// connection becomes unusable (DEFUNCT) or merely degraded
// (FAILED_SERVER_REPORTED, recoverable via RESET).
type classification struct {
	kind  boerrs.Kind
	fatal bool
}

// classificationRules is checked in order; the first substring match wins.
// Substring rules are used rather than an exact-match set because server
// vendors append suffixes Neo4j never anticipated, e.g. cluster-aware
// routing errors.
var classificationRules = []struct {
	substr string
	classification
}{
	{"ClientError.Security", classification{boerrs.KindHandshakeFailed, true}},
	{"TransientError", classification{boerrs.KindNetworkError, false}},
	{"DatabaseUnavailable", classification{boerrs.KindNetworkError, false}},
	{"NotALeader", classification{boerrs.KindNetworkError, false}},
	{"ForbiddenOnReadOnlyDatabase", classification{boerrs.KindNetworkError, false}},
	{"ClientError.Statement", classification{boerrs.KindInvalidArgument, false}},
	{"ClientError.Transaction", classification{boerrs.KindUnknownError, false}},
}

// classifyFailure resolves a server-reported FAILURE code/message pair into
// an error the caller can act on and the state the connection should move
// to as a result.
func classifyFailure(code, message string) (error, State) {
	for _, rule := range classificationRules {
		if strings.Contains(code, rule.substr) {
			st := StateFailedServerReported
			if rule.fatal {
				st = StateDefunct
			}
			return boerrs.NewServerFailure(code, message, rule.kind, rule.fatal), st
		}
	}
	// Unrecognized code: conservative default, recoverable.
	return boerrs.NewServerFailure(code, message, boerrs.KindUnknownError, false), StateFailedServerReported
}
