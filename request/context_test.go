package request

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

func TestCurrent_OutsideScope(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, Current(ctx))
	assert.Equal(t, "", RequestID(ctx))
	assert.False(t, Set(ctx, "k", "v"))
	assert.False(t, Merge(ctx, WithUserID("u1")))
}

func TestRun_StateVisibleAcrossGoroutines(t *testing.T) {
	state := NewState(WithRequestID("req-1"), WithUserID("u1"))

	got, err := Run(context.Background(), state, func(ctx context.Context) ([]string, error) {
		var wg sync.WaitGroup
		out := make([]string, 4)
		for i := range out {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out[i] = RequestID(ctx)
				Set(ctx, "worker", i)
			}(i)
		}
		wg.Wait()
		return out, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"req-1", "req-1", "req-1", "req-1"}, got)

	_, ok := state.Get("worker")
	assert.True(t, ok)
}

func TestRun_NestedScopeIsIndependent(t *testing.T) {
	outer := NewState(WithRequestID("outer"), WithAttr("tenant", "a"))

	_, err := Run(context.Background(), outer, func(ctx context.Context) (struct{}, error) {
		_, err := Run(ctx, NewState(WithRequestID("inner")), func(inner context.Context) (struct{}, error) {
			assert.Equal(t, "inner", RequestID(inner))
			_, ok := Current(inner).Get("tenant")
			assert.False(t, ok)
			Set(inner, "leak", true)
			return struct{}{}, nil
		})
		assert.Equal(t, "outer", RequestID(ctx))
		return struct{}{}, err
	})
	require.NoError(t, err)

	_, leaked := outer.Get("leak")
	assert.False(t, leaked)
}

func TestRun_ConcurrentScopesDoNotShare(t *testing.T) {
	var wg sync.WaitGroup
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = Run(context.Background(), NewState(WithRequestID(id)), func(ctx context.Context) (int, error) {
				Set(ctx, "owner", id)
				v, _ := Current(ctx).Get("owner")
				assert.Equal(t, id, v)
				assert.Equal(t, id, RequestID(ctx))
				return 0, nil
			})
		}(id)
	}
	wg.Wait()
}

func TestState_CloneAndSnapshot(t *testing.T) {
	state := NewState(WithRequestID("r"), WithUser(&Principal{ID: "u9"}), WithAttr("k", 1))
	assert.Equal(t, "u9", state.UserID())

	clone := state.Clone()
	clone.Apply(WithAttr("k", 2))
	v, _ := state.Get("k")
	assert.Equal(t, 1, v)

	snap := state.Snapshot()
	assert.Equal(t, "r", snap["reqId"])
	assert.Equal(t, "u9", snap["userId"])
	assert.Equal(t, 1, snap["k"])
}

func TestNewState_GeneratesRequestID(t *testing.T) {
	assert.NotEmpty(t, NewState().RequestID())
	assert.NotEqual(t, NewState().RequestID(), NewState().RequestID())
}

func TestNewSystemState(t *testing.T) {
	state := NewSystemState()
	assert.Equal(t, SystemPrincipal.ID, state.UserID())
	assert.NotEmpty(t, state.RequestID())
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(GinUserKey, &Principal{ID: "user-7"})
	})
	router.Use(HTTPMiddleware())

	var seen *State
	router.GET("/ping", func(c *gin.Context) {
		seen = Current(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "abc")
	req.Header.Set(HeaderPlatform, "ios")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.NotNil(t, seen)
	assert.Equal(t, "abc", seen.RequestID())
	assert.Equal(t, "ios", seen.Platform())
	assert.Equal(t, "user-7", seen.UserID())
	assert.Equal(t, "abc", rec.Header().Get(HeaderRequestID))
}

func TestHTTPMiddleware_GeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(HTTPMiddleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestUnaryServerInterceptor(t *testing.T) {
	md := metadata.Pairs(MetadataRequestID, "grpc-1", MetadataPlatform, "android")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	ctx = peer.NewContext(ctx, &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 5000}})

	interceptor := UnaryServerInterceptor()
	resp, err := interceptor(ctx, "req", &grpc.UnaryServerInfo{FullMethod: "/svc/M"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			state := Current(ctx)
			require.NotNil(t, state)
			assert.Equal(t, "android", state.Platform())
			assert.Equal(t, "10.0.0.1:5000", state.ClientIP())
			return RequestID(ctx), nil
		})
	require.NoError(t, err)
	assert.Equal(t, "grpc-1", resp)
}
