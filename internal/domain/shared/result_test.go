package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_States(t *testing.T) {
	loading := Loading[int]()
	assert.True(t, loading.IsLoading())
	assert.False(t, loading.IsSuccess())
	_, ok := loading.Value()
	assert.False(t, ok)

	success := Success(42)
	assert.True(t, success.IsSuccess())
	v, ok := success.Value()
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	failure := Failure[int](KindStorage, "disk full", nil)
	assert.True(t, failure.IsError())
	assert.Equal(t, KindStorage, failure.ErrorKind())
	require.NotNil(t, failure.Err())
	assert.Equal(t, "disk full", failure.Err().Message)
}

func TestResult_LoadingWithPartial(t *testing.T) {
	r := LoadingWith(100, 37)
	assert.True(t, r.IsLoading())
	assert.Equal(t, 37, r.Progress())

	partial, ok := r.Partial()
	assert.True(t, ok)
	assert.Equal(t, 100, partial)

	// Partial is not a Success value.
	_, ok = r.Value()
	assert.False(t, ok)

	// Progress is clamped to 0..100.
	assert.Equal(t, 100, LoadingWith(1, 250).Progress())
	assert.Equal(t, 0, LoadingWith(1, -5).Progress())
}

func TestWithPartial_ErrorKeepsStaleData(t *testing.T) {
	failed := WithPartial(Failure[int](KindNetwork, "down", nil), 42)
	assert.True(t, failed.IsError())
	stale, ok := failed.Partial()
	assert.True(t, ok)
	assert.Equal(t, 42, stale)

	// Success ignores WithPartial.
	okResult := WithPartial(Success(7), 99)
	v, _ := okResult.Value()
	assert.Equal(t, 7, v)
}

func TestMap_TransformsSuccessOnly(t *testing.T) {
	double := func(x int) int { return x * 2 }

	mapped := Map(Success(21), double)
	v, _ := mapped.Value()
	assert.Equal(t, 42, v)

	// Error passes through untouched.
	failed := Map(Failure[int](KindNetwork, "down", nil), double)
	assert.True(t, failed.IsError())
	assert.Equal(t, KindNetwork, failed.ErrorKind())

	// Loading passes through, but an attached partial is mapped too.
	stale := Map(LoadingWith(10, 50), double)
	assert.True(t, stale.IsLoading())
	partial, ok := stale.Partial()
	assert.True(t, ok)
	assert.Equal(t, 20, partial)
	assert.Equal(t, 50, stale.Progress())
}

func TestFlatMap_ShortCircuits(t *testing.T) {
	calls := 0
	next := func(x int) Result[string] {
		calls++
		return Success("ok")
	}

	assert.True(t, FlatMap(Success(1), next).IsSuccess())
	assert.Equal(t, 1, calls)

	assert.True(t, FlatMap(Loading[int](), next).IsLoading())
	assert.True(t, FlatMap(Failure[int](KindTimeout, "slow", nil), next).IsError())
	assert.Equal(t, 1, calls, "dependent operation must not run on Loading/Error")
}

func TestGetOrDefault(t *testing.T) {
	assert.Equal(t, 7, Success(7).GetOrDefault(0))
	assert.Equal(t, 0, Loading[int]().GetOrDefault(0))
	assert.Equal(t, -1, Failure[int](KindServer, "boom", nil).GetOrDefault(-1))
}

func TestRecover(t *testing.T) {
	recovered := Recover(Failure[int](KindNetwork, "down", nil), func(e *ResultError) Result[int] {
		assert.Equal(t, KindNetwork, e.Kind)
		return Success(0)
	})
	assert.True(t, recovered.IsSuccess())

	// Success is not touched by Recover.
	untouched := Recover(Success(5), func(*ResultError) Result[int] {
		t.Fatal("recover must not run on success")
		return Loading[int]()
	})
	v, _ := untouched.Value()
	assert.Equal(t, 5, v)
}

func TestFailureFrom_ClassifiesDomainErrors(t *testing.T) {
	r := FailureFrom[int](ErrLedgerNotFound)
	assert.Equal(t, KindNotFound, r.ErrorKind())

	r = FailureFrom[int](ErrRemoteOffline)
	assert.Equal(t, KindOffline, r.ErrorKind())

	r = FailureFrom[int](errors.New("mystery"))
	assert.Equal(t, KindUnknown, r.ErrorKind())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(ErrNonPositiveXP))
	assert.Equal(t, KindStorage, KindOf(ErrLedgerSaveFailed))
	assert.Equal(t, KindRateLimited, KindOf(ErrRemoteRateLimited))
	assert.Equal(t, KindTimeout, KindOf(ErrRemoteTimeout))
	assert.Equal(t, KindParsing, KindOf(ErrRemoteBadResponse))
	assert.Equal(t, KindNotFound, KindOf(ErrUserNotRanked))
}

func TestErrorKind_Retryable(t *testing.T) {
	assert.True(t, KindNetwork.IsRetryable())
	assert.True(t, KindOffline.IsRetryable())
	assert.False(t, KindValidation.IsRetryable())
	assert.False(t, KindNotFound.IsRetryable())
}
