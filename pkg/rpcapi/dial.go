package rpcapi

import (
	"context"
	"net"
)

// InboundHandler answers a request frame arriving on a dialed Conn. A
// client connection only ever receives unsolicited pushes (ReqID 0, see
// Conn.readLoop) so it can pass nil; a worker connection must answer
// add_nodes/unassign_objects/stop_tasks/worker_resources and supplies a
// real handler (pkg/workeragent).
type InboundHandler func(body any) (any, error)

// Conn is a client-side (dialing, non-listening) connection to the RPC
// control endpoint. Both pkg/client (registering as a client) and
// pkg/workeragent (registering as a worker) are built on it: the
// difference between the two roles is entirely in which requests arrive
// and how handler answers them, not in the transport.
type Conn struct {
	rc      *rpcConn
	nc      net.Conn
	handler InboundHandler
}

// Dial opens a TCP connection to the RPC control endpoint and starts its
// read loop. handler may be nil if the caller never expects inbound
// requests (a plain client connection before any Notify subscription).
func Dial(addr string, handler InboundHandler) (*Conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	c := &Conn{rc: newRPCConn(nc), nc: nc, handler: handler}
	go c.readLoop()
	return c, nil
}

// Call issues body as a request and blocks for the matching reply.
func (c *Conn) Call(ctx context.Context, body any) (any, error) {
	return c.rc.call(ctx, body)
}

// Close shuts down the connection and unblocks any call still waiting.
func (c *Conn) Close() error {
	c.rc.closeAll()
	return c.nc.Close()
}

// readLoop demuxes inbound frames: replies to calls we issued are routed
// to their waiting channel, and requests the peer initiated (unsolicited
// pushes at ReqID 0, or real calls from a server acting as a worker's
// controller) are handed to handler.
func (c *Conn) readLoop() {
	for {
		f, err := c.rc.codec.recv()
		if err != nil {
			c.rc.closeAll()
			return
		}
		if f.Type != frameRequest {
			c.rc.dispatchResponse(f)
			continue
		}
		if f.ReqID == 0 {
			if c.handler != nil {
				_, _ = c.handler(f.Body)
			}
			continue
		}
		if c.handler == nil {
			_ = c.rc.replyErr(f.ReqID, "Protocol", "connection accepts no inbound requests")
			continue
		}
		resp, err := c.handler(f.Body)
		if err != nil {
			_ = c.rc.replyErr(f.ReqID, kindName(err), err.Error())
			continue
		}
		_ = c.rc.reply(f.ReqID, resp)
	}
}
