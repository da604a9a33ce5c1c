package conn

import (
	"testing"

	"github.com/go-bolt/boltconn/internal/boerrs"
	"github.com/stretchr/testify/require"
)

func TestClassifySecurityErrorIsFatal(t *testing.T) {
	err, st := classifyFailure("Neo.ClientError.Security.Unauthorized", "bad credentials")
	require.True(t, boerrs.IsKind(err, boerrs.KindHandshakeFailed))
	require.Equal(t, StateDefunct, st)
}

func TestClassifyTransientErrorIsRecoverable(t *testing.T) {
	err, st := classifyFailure("Neo.TransientError.Transaction.DeadlockDetected", "deadlock")
	require.True(t, boerrs.IsKind(err, boerrs.KindNetworkError))
	require.Equal(t, StateFailedServerReported, st)
}

func TestClassifyGenericClientErrorIsRecoverable(t *testing.T) {
	err, st := classifyFailure("Neo.ClientError.Statement.SyntaxError", "bad query")
	require.True(t, boerrs.IsKind(err, boerrs.KindInvalidArgument))
	require.Equal(t, StateFailedServerReported, st)
}

func TestClassifyUnknownCodeDefaultsToRecoverable(t *testing.T) {
	_, st := classifyFailure("Some.Totally.Unrecognized.Code", "???")
	require.Equal(t, StateFailedServerReported, st)
}
