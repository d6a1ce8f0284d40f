package rpcapi

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/rain/pkg/rainerr"
)

func connPair(t *testing.T) (*rpcConn, *rpcConn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { _ = a.Close(); _ = b.Close() })
	return newRPCConn(a), newRPCConn(b)
}

// routeReplies runs c's read side the way a connection's read loop does,
// handing every reply frame to the call waiting on it. call itself never
// reads from the connection.
func routeReplies(c *rpcConn) {
	go func() {
		for {
			f, err := c.codec.recv()
			if err != nil {
				c.closeAll()
				return
			}
			c.dispatchResponse(f)
		}
	}()
}

func TestRPCConnCallReply(t *testing.T) {
	client, server := connPair(t)
	routeReplies(client)
	go func() {
		f, err := server.codec.recv()
		require.NoError(t, err)
		require.Equal(t, frameRequest, f.Type)
		req := f.Body.(RegisterAsClientReq)
		require.Equal(t, ClientProtocolVersion, req.Version)
		require.NoError(t, server.reply(f.ReqID, RegisterAsClientResp{}))
	}()

	resp, err := client.call(context.Background(), RegisterAsClientReq{Version: ClientProtocolVersion})
	require.NoError(t, err)
	require.IsType(t, RegisterAsClientResp{}, resp)
}

func TestRPCConnCallErrorResponse(t *testing.T) {
	client, server := connPair(t)
	routeReplies(client)
	go func() {
		f, err := server.codec.recv()
		require.NoError(t, err)
		require.NoError(t, server.replyErr(f.ReqID, "Validation", "unknown session"))
	}()

	_, err := client.call(context.Background(), OpenSessionReq{})
	require.Error(t, err)
	require.True(t, rainerr.Is(err, rainerr.KindValidation))
}

func TestRPCConnCallClosedBeforeReply(t *testing.T) {
	client, server := connPair(t)
	go func() {
		_, err := server.codec.recv()
		require.NoError(t, err)
		server.closeAll()
		client.closeAll()
	}()

	_, err := client.call(context.Background(), OpenSessionReq{})
	require.Error(t, err)
}

func TestRPCConnDispatchResponseIgnoresUnknownReqID(t *testing.T) {
	_, server := connPair(t)
	// No pending call registered for this ReqID; dispatchResponse must not
	// panic or block.
	server.dispatchResponse(frame{Type: frameResponse, ReqID: 999, Body: OpenSessionResp{}})
}
