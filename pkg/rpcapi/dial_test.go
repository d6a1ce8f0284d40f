package rpcapi

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/rain/pkg/rainerr"
)

// listenOnce starts a listener that accepts exactly one connection and
// hands its server-side *rpcConn to onAccept in a background goroutine.
func listenOnce(t *testing.T, onAccept func(*rpcConn)) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	go func() {
		nc, err := l.Accept()
		if err != nil {
			return
		}
		onAccept(newRPCConn(nc))
	}()
	return l.Addr().String()
}

func TestDialCallRoundTrip(t *testing.T) {
	addr := listenOnce(t, func(server *rpcConn) {
		f, err := server.codec.recv()
		require.NoError(t, err)
		require.IsType(t, RegisterAsClientReq{}, f.Body)
		require.NoError(t, server.reply(f.ReqID, RegisterAsClientResp{}))
	})

	conn, err := Dial(addr, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	resp, err := conn.Call(context.Background(), RegisterAsClientReq{Version: ClientProtocolVersion})
	require.NoError(t, err)
	require.IsType(t, RegisterAsClientResp{}, resp)
}

func TestDialNilHandlerRejectsInboundRequest(t *testing.T) {
	errCh := make(chan error, 1)
	addr := listenOnce(t, func(server *rpcConn) {
		routeReplies(server)
		_, err := server.call(context.Background(), AddNodesReq{})
		errCh <- err
	})

	conn, err := Dial(addr, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Error(t, <-errCh)
}

func TestDialHandlerAnswersInboundRequest(t *testing.T) {
	respCh := make(chan any, 1)
	addr := listenOnce(t, func(server *rpcConn) {
		routeReplies(server)
		resp, err := server.call(context.Background(), StopTasksReq{})
		require.NoError(t, err)
		respCh <- resp
	})

	handler := func(body any) (any, error) {
		require.IsType(t, StopTasksReq{}, body)
		return StopTasksResp{}, nil
	}

	conn, err := Dial(addr, handler)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	resp := <-respCh
	require.IsType(t, StopTasksResp{}, resp)
}

func TestDialHandlerErrorPropagatesKind(t *testing.T) {
	errCh := make(chan error, 1)
	addr := listenOnce(t, func(server *rpcConn) {
		routeReplies(server)
		_, err := server.call(context.Background(), StopTasksReq{})
		errCh <- err
	})

	handler := func(body any) (any, error) {
		return nil, rainerr.WorkerFaultf("cannot stop task")
	}

	conn, err := Dial(addr, handler)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	err = <-errCh
	require.Error(t, err)
	require.True(t, rainerr.Is(err, rainerr.KindWorkerFault))
}

func TestConnCloseUnblocksPendingCall(t *testing.T) {
	addr := listenOnce(t, func(server *rpcConn) {
		_, _ = server.codec.recv()
	})

	conn, err := Dial(addr, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := conn.Call(context.Background(), OpenSessionReq{})
		done <- err
	}()

	require.NoError(t, conn.Close())
	require.Error(t, <-done)
}
