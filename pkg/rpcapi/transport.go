package rpcapi

import (
	"context"
	"encoding/gob"
	"net"
	"sync"
	"sync/atomic"

	"github.com/cuemby/rain/pkg/rainerr"
)

// frameType distinguishes a fresh request from a reply to one already in
// flight, so a single TCP connection can carry both directions at once
// (spec.md §4.6: a worker connection fields WorkerUpstream pushes while
// also answering outbound worker-control calls).
type frameType uint8

const (
	frameRequest frameType = iota
	frameResponse
	frameError
)

// frame is the one gob value exchanged per call. Body's concrete type must
// be registered with gob.Register (see init below) since the field is
// typed as an interface.
type frame struct {
	Type  frameType
	ReqID uint64
	Body  any
}

func init() {
	gob.Register(RegisterAsClientReq{})
	gob.Register(RegisterAsClientResp{})
	gob.Register(RegisterAsWorkerReq{})
	gob.Register(RegisterAsWorkerResp{})
	gob.Register(OpenSessionReq{})
	gob.Register(OpenSessionResp{})
	gob.Register(CloseSessionReq{})
	gob.Register(CloseSessionResp{})
	gob.Register(SubmitObjectReq{})
	gob.Register(SubmitObjectResp{})
	gob.Register(SubmitTaskReq{})
	gob.Register(SubmitTaskResp{})
	gob.Register(SubmitBatchReq{})
	gob.Register(SubmitBatchResp{})
	gob.Register(UnkeepObjectReq{})
	gob.Register(UnkeepObjectResp{})
	gob.Register(FinishEventPush{})
	gob.Register(UpdatesFromWorkerReq{})
	gob.Register(UpdatesFromWorkerResp{})
	gob.Register(AddNodesReq{})
	gob.Register(AddNodesResp{})
	gob.Register(UnassignObjectsReq{})
	gob.Register(UnassignObjectsResp{})
	gob.Register(StopTasksReq{})
	gob.Register(StopTasksResp{})
	gob.Register(ProbeResourcesReq{})
	gob.Register(ProbeResourcesResp{})
	gob.Register(ErrorResp{})
}

// connCodec serializes frames over one net.Conn using a single gob
// Encoder/Decoder pair, as GRAIL's bigmachine executor does for its
// gob-over-net.Conn RPC transport: one Encoder/Decoder per connection, not
// one per message, so gob's type descriptors are sent only once.
type connCodec struct {
	nc      net.Conn
	enc     *gob.Encoder
	dec     *gob.Decoder
	writeMu sync.Mutex
}

func newConnCodec(nc net.Conn) *connCodec {
	return &connCodec{nc: nc, enc: gob.NewEncoder(nc), dec: gob.NewDecoder(nc)}
}

func (c *connCodec) send(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.enc.Encode(&f)
}

func (c *connCodec) recv() (frame, error) {
	var f frame
	err := c.dec.Decode(&f)
	return f, err
}

// rpcConn is the shared per-connection state used by both directions of
// traffic: replying to requests the peer sent us, and issuing our own
// requests and waiting for the peer's reply. Exactly one rpcConn exists
// per TCP connection and is read by a single goroutine (handleConnection's
// read loop) that demuxes frameResponse/frameError into pending's
// channels and hands frameRequest frames to the bootstrap dispatcher.
type rpcConn struct {
	codec     *connCodec
	nextReqID uint64

	mu      sync.Mutex
	pending map[uint64]chan frame
	closed  chan struct{}
}

func newRPCConn(nc net.Conn) *rpcConn {
	return &rpcConn{
		codec:   newConnCodec(nc),
		pending: make(map[uint64]chan frame),
		closed:  make(chan struct{}),
	}
}

// call sends body as a fresh request and blocks for its reply, converting
// an ErrorResp into a classified rainerr. Used for every outbound
// worker-control RPC (spec.md §4.6's add_nodes/unassign_objects/
// stop_tasks/worker_resources).
func (c *rpcConn) call(ctx context.Context, body any) (any, error) {
	id := atomic.AddUint64(&c.nextReqID, 1)
	ch := make(chan frame, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.codec.send(frame{Type: frameRequest, ReqID: id, Body: body}); err != nil {
		return nil, rainerr.Wrap(rainerr.KindWorkerFault, err, "send")
	}

	select {
	case f := <-ch:
		if f.Type == frameError {
			return nil, errorFromWire(f.Body.(ErrorResp))
		}
		return f.Body, nil
	case <-c.closed:
		return nil, rainerr.WorkerFaultf("connection closed before reply")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// reply sends body as the response to reqID.
func (c *rpcConn) reply(reqID uint64, body any) error {
	return c.codec.send(frame{Type: frameResponse, ReqID: reqID, Body: body})
}

// replyErr sends a classified error as the response to reqID.
func (c *rpcConn) replyErr(reqID uint64, kind, message string) error {
	return c.codec.send(frame{Type: frameError, ReqID: reqID, Body: ErrorResp{Kind: kind, Message: message}})
}

// dispatchResponse routes an inbound frameResponse/frameError to the
// channel call is blocked on, if any is still waiting.
func (c *rpcConn) dispatchResponse(f frame) {
	c.mu.Lock()
	ch, ok := c.pending[f.ReqID]
	c.mu.Unlock()
	if ok {
		ch <- f
	}
}

// closeAll unblocks every call still waiting on a reply, used once the
// connection's read loop has observed EOF/error.
func (c *rpcConn) closeAll() {
	close(c.closed)
}

// kindName maps a rainerr-classified error to its wire Kind string,
// defaulting to Internal for anything unclassified (spec.md §7).
func kindName(err error) string {
	k, ok := rainerr.KindOf(err)
	if !ok {
		return rainerr.KindInternal.String()
	}
	return k.String()
}

func errorFromWire(er ErrorResp) error {
	switch er.Kind {
	case "Validation":
		return rainerr.Validationf("%s", er.Message)
	case "Protocol":
		return rainerr.Protocolf("%s", er.Message)
	case "WorkerFault":
		return rainerr.WorkerFaultf("%s", er.Message)
	default:
		return rainerr.Internalf("%s", er.Message)
	}
}
