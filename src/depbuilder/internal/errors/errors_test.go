package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryMatching(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      Category
		retryable bool
		bad       bool
	}{
		{
			name: "invalid request",
			err:  Newf(InvalidRequest, "negative line %d", -1),
			want: InvalidRequest,
			bad:  true,
		},
		{
			name:      "pool exhausted",
			err:       Wrap(PoolExhausted, New("no handle")),
			want:      PoolExhausted,
			retryable: true,
		},
		{
			name:      "connection lost wrapped twice",
			err:       fmt.Errorf("dispatching: %w", Wrap(ConnectionLost, New("EOF"))),
			want:      ConnectionLost,
			retryable: true,
		},
		{
			name: "bare category",
			err:  RequestTimeout,
			want: RequestTimeout,
		},
		{
			name: "protocol error",
			err:  Wrap(ProtocolError, New("bad frame")),
			want: ProtocolError,
		},
		{
			name: "context canceled",
			err:  context.Canceled,
			want: Cancelled,
		},
		{
			name: "context deadline",
			err:  fmt.Errorf("waiting: %w", context.DeadlineExceeded),
			want: Cancelled,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, ok := CategoryOf(tt.err)
			require.True(t, ok)
			assert.Equal(t, tt.want, c)
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
			assert.Equal(t, tt.bad, IsBadRequest(tt.err))
		})
	}
}

func TestCategoryOfUncategorized(t *testing.T) {
	_, ok := CategoryOf(New("plain"))
	assert.False(t, ok)

	_, ok = CategoryOf(nil)
	assert.False(t, ok)
}

func TestQueryErrorMessage(t *testing.T) {
	err := WithQuery(Wrap(RequestTimeout, New("no reply after 1s")), "lookupSymbol", "/ws/a.cc", "3:4")
	assert.Equal(t, "RequestTimeout method=lookupSymbol file=/ws/a.cc position=3:4: no reply after 1s", err.Error())
	assert.True(t, Is(err, RequestTimeout))
	assert.False(t, Is(err, ConnectionLost))
}

func TestWithQuery(t *testing.T) {
	t.Run("keeps existing fields", func(t *testing.T) {
		inner := &QueryError{Category: ConnectionLost, Method: "findReferences"}
		err := WithQuery(inner, "lookupSymbol", "/ws/a.cc", "1:1")

		var qe *QueryError
		require.True(t, As(err, &qe))
		assert.Equal(t, "findReferences", qe.Method)
		assert.Equal(t, "/ws/a.cc", qe.Path)
		assert.Equal(t, "1:1", qe.Position)
		assert.Empty(t, inner.Path, "original must not be mutated")
	})

	t.Run("uncategorized becomes protocol error", func(t *testing.T) {
		err := WithQuery(New("boom"), "typeDefinition", "/ws/b.cc", "")
		assert.True(t, Is(err, ProtocolError))
	})

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, WithQuery(nil, "a", "b", "c"))
	})
}

func TestFromContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := FromContext(ctx)
	assert.True(t, Is(err, Cancelled))
	assert.True(t, Is(err, context.Canceled))
}

func TestCategoryString(t *testing.T) {
	for _, c := range Categories() {
		assert.NotContains(t, c.String(), "Category(")
	}
	assert.Equal(t, "Category(42)", Category(42).String())
}

func TestCustomErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "file not found",
			err:  &FileNotFoundError{Path: "/ws/a.cc"},
			want: `file "/ws/a.cc" not found`,
		},
		{
			name: "outside workspace",
			err:  &OutsideWorkspaceError{Path: "/etc/passwd", WorkspaceRoot: "/ws"},
			want: `path "/etc/passwd" is outside workspace root "/ws"`,
		},
		{
			name: "unsupported method",
			err:  &UnsupportedMethodError{Method: "hover"},
			want: `unsupported method "hover"`,
		},
		{
			name: "symbol not found",
			err:  &SymbolNotFoundError{Name: "run", Path: "/ws/a.cc"},
			want: `symbol "run" not found in "/ws/a.cc"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
