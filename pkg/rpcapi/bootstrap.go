package rpcapi

import (
	"context"
	"net"

	"github.com/cuemby/rain/pkg/graph"
	"github.com/cuemby/rain/pkg/ids"
	"github.com/cuemby/rain/pkg/rainerr"
)

// bootstrapConn is the per-connection state machine of spec.md §4.6's
// Bootstrap object: a connection starts unregistered and becomes exactly
// one of a client connection or a worker connection on its first
// successful registration call. Registering twice, in either direction,
// is a protocol error.
type bootstrapConn struct {
	server     *Server
	conn       *rpcConn
	remoteAddr net.Addr

	client *graph.Client
	worker *graph.Worker
}

// dispatch routes one inbound frameRequest to the right handler based on
// its payload's concrete type, then replies on this same connection.
func (b *bootstrapConn) dispatch(f frame) {
	var (
		resp any
		err  error
	)

	switch req := f.Body.(type) {
	case RegisterAsClientReq:
		resp, err = b.handleRegisterAsClient(req)
	case RegisterAsWorkerReq:
		resp, err = b.handleRegisterAsWorker(req)
	case OpenSessionReq:
		resp, err = b.handleOpenSession(req)
	case CloseSessionReq:
		resp, err = b.handleCloseSession(req)
	case SubmitObjectReq:
		resp, err = b.handleSubmitObject(req)
	case SubmitTaskReq:
		resp, err = b.handleSubmitTask(req)
	case SubmitBatchReq:
		resp, err = b.handleSubmitBatch(req)
	case UnkeepObjectReq:
		resp, err = b.handleUnkeepObject(req)
	case UpdatesFromWorkerReq:
		resp, err = b.handleUpdatesFromWorker(req)
	default:
		err = rainerr.Protocolf("unrecognized request type %T", f.Body)
	}

	if err != nil {
		_ = b.conn.replyErr(f.ReqID, kindName(err), err.Error())
		return
	}
	_ = b.conn.reply(f.ReqID, resp)
}

// handleRegisterAsClient is Bootstrap's register_as_client (spec.md §4.6).
func (b *bootstrapConn) handleRegisterAsClient(req RegisterAsClientReq) (RegisterAsClientResp, error) {
	if b.client != nil || b.worker != nil {
		return RegisterAsClientResp{}, rainerr.Protocolf("connection already registered")
	}
	if req.Version != ClientProtocolVersion {
		return RegisterAsClientResp{}, rainerr.Protocolf("client protocol version %d unsupported (want %d)", req.Version, ClientProtocolVersion)
	}

	var (
		client *graph.Client
		err    error
	)
	b.server.do(func() {
		client, err = b.server.driver.AddClient(b.remoteAddr)
	})
	if err != nil {
		return RegisterAsClientResp{}, err
	}
	b.client = client
	return RegisterAsClientResp{}, nil
}

// handleRegisterAsWorker is Bootstrap's register_as_worker (spec.md §4.6).
// Driver.AddWorker first sends a resource probe to the worker over this
// connection, and adds the worker to the graph only once that probe has
// answered; the connection becomes a worker connection (b.worker) after
// that.
func (b *bootstrapConn) handleRegisterAsWorker(req RegisterAsWorkerReq) (RegisterAsWorkerResp, error) {
	if b.client != nil || b.worker != nil {
		return RegisterAsWorkerResp{}, rainerr.Protocolf("connection already registered")
	}
	if req.Version != WorkerProtocolVersion {
		return RegisterAsWorkerResp{}, rainerr.Protocolf("worker protocol version %d unsupported (want %d)", req.Version, WorkerProtocolVersion)
	}

	workerID, err := b.resolveWorkerID(req.AnnouncedAddress)
	if err != nil {
		return RegisterAsWorkerResp{}, rainerr.Wrap(rainerr.KindProtocol, err, "announced address")
	}

	control := &workerControl{conn: b.conn}

	var worker *graph.Worker
	b.server.do(func() {
		worker, err = b.server.driver.AddWorker(context.Background(), workerID, control)
	})
	if err != nil {
		return RegisterAsWorkerResp{}, err
	}
	b.worker = worker
	return RegisterAsWorkerResp{WorkerID: workerID}, nil
}

// resolveWorkerID implements spec.md §4.6's literal rule: "if announced IP
// is unspecified, use {connection IP, announced port}, else announced".
func (b *bootstrapConn) resolveWorkerID(announced string) (ids.WorkerID, error) {
	host, portStr, err := net.SplitHostPort(announced)
	if err != nil {
		return ids.WorkerID{}, err
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.IsUnspecified() {
		connIP, _, err := net.SplitHostPort(b.remoteAddr.String())
		if err != nil {
			return ids.WorkerID{}, err
		}
		return ids.WorkerIDFromAddr(net.JoinHostPort(connIP, portStr))
	}
	return ids.WorkerIDFromAddr(announced)
}

// onDisconnect tears down any Worker or Client this connection registered,
// per spec.md §4.6: "connection drop removes any Worker/Client created
// through it".
func (b *bootstrapConn) onDisconnect() {
	switch {
	case b.worker != nil:
		id := b.worker.ID
		b.server.submit(func() {
			_ = b.server.driver.RemoveWorker(context.Background(), id)
		})
	case b.client != nil:
		id := b.client.ID
		b.server.submit(func() {
			_ = b.server.driver.RemoveClient(id)
		})
	}
}
