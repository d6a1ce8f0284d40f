package client

import (
	"context"
	"encoding/gob"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/rain/pkg/ids"
	"github.com/cuemby/rain/pkg/rpcapi"
)

// wireFrame mirrors rpcapi's unexported frame type structurally (same
// field names), relying on the process-wide gob registry rpcapi's init()
// populates for Body's concrete types.
type wireFrame struct {
	Type  uint8
	ReqID uint64
	Body  any
}

const (
	wireRequest  uint8 = 0
	wireResponse uint8 = 1
)

// fakeServerConn is a minimal stand-in for the RPC control endpoint: it
// speaks the same gob-over-net.Conn wire format rpcapi.Dial expects, one
// frame at a time, driven by the test.
type fakeServerConn struct {
	t   *testing.T
	enc *gob.Encoder
	dec *gob.Decoder
}

func acceptFake(t *testing.T) (addr string, conns chan *fakeServerConn) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	conns = make(chan *fakeServerConn, 1)
	go func() {
		nc, err := l.Accept()
		if err != nil {
			return
		}
		conns <- &fakeServerConn{t: t, enc: gob.NewEncoder(nc), dec: gob.NewDecoder(nc)}
	}()
	return l.Addr().String(), conns
}

func (f *fakeServerConn) recv() wireFrame {
	f.t.Helper()
	var fr wireFrame
	require.NoError(f.t, f.dec.Decode(&fr))
	return fr
}

func (f *fakeServerConn) reply(reqID uint64, body any) {
	f.t.Helper()
	require.NoError(f.t, f.enc.Encode(&wireFrame{Type: wireResponse, ReqID: reqID, Body: body}))
}

func dialTestClient(t *testing.T) (*Client, *fakeServerConn) {
	t.Helper()
	addr, conns := acceptFake(t)

	done := make(chan struct {
		c   *Client
		err error
	}, 1)
	go func() {
		c, err := Dial(context.Background(), addr)
		done <- struct {
			c   *Client
			err error
		}{c, err}
	}()

	server := <-conns
	f := server.recv()
	require.Equal(t, wireRequest, f.Type)
	require.IsType(t, rpcapi.RegisterAsClientReq{}, f.Body)
	server.reply(f.ReqID, rpcapi.RegisterAsClientResp{})

	r := <-done
	require.NoError(t, r.err)
	t.Cleanup(func() { _ = r.c.Close() })
	return r.c, server
}

func TestDialRegistersAsClient(t *testing.T) {
	dialTestClient(t)
}

func TestOpenSession(t *testing.T) {
	c, server := dialTestClient(t)

	done := make(chan struct {
		id  ids.SessionID
		err error
	}, 1)
	go func() {
		id, err := c.OpenSession(context.Background())
		done <- struct {
			id  ids.SessionID
			err error
		}{id, err}
	}()

	f := server.recv()
	require.IsType(t, rpcapi.OpenSessionReq{}, f.Body)
	server.reply(f.ReqID, rpcapi.OpenSessionResp{SessionID: 7})

	r := <-done
	require.NoError(t, r.err)
	require.Equal(t, ids.SessionID(7), r.id)
}

func TestSubmitObjectAndTask(t *testing.T) {
	c, server := dialTestClient(t)
	session := ids.SessionID(1)
	inID := ids.DataObjectID{Session: session, Local: 1}
	outID := ids.DataObjectID{Session: session, Local: 2}

	objErrCh := make(chan error, 1)
	go func() {
		objErrCh <- c.SubmitObject(context.Background(), session, inID, "bytes", SubmitObjectOpts{Data: []byte("hi")})
	}()
	f := server.recv()
	req := f.Body.(rpcapi.SubmitObjectReq)
	require.Equal(t, inID, req.ID)
	require.Equal(t, []byte("hi"), req.Data)
	server.reply(f.ReqID, rpcapi.SubmitObjectResp{})
	require.NoError(t, <-objErrCh)

	taskErrCh := make(chan error, 1)
	go func() {
		taskErrCh <- c.SubmitTask(context.Background(), session, ids.TaskID{Session: session, Local: 1},
			[]TaskInput{{ObjectID: inID}}, []ids.DataObjectID{outID}, "echo", nil, SubmitTaskOpts{})
	}()
	f = server.recv()
	taskReq := f.Body.(rpcapi.SubmitTaskReq)
	require.Equal(t, []ids.DataObjectID{outID}, taskReq.Outputs)
	require.Equal(t, "echo", taskReq.TaskType)
	server.reply(f.ReqID, rpcapi.SubmitTaskResp{})
	require.NoError(t, <-taskErrCh)
}

func TestSubmitBatch(t *testing.T) {
	c, server := dialTestClient(t)
	session := ids.SessionID(1)
	inID := ids.DataObjectID{Session: session, Local: 1}
	outID := ids.DataObjectID{Session: session, Local: 2}
	taskID := ids.TaskID{Session: session, Local: 1}

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.SubmitBatch(context.Background(), session,
			[]BatchObject{
				{ID: inID, ObjectType: "bytes", Data: []byte("hi")},
				{ID: outID, ObjectType: "bytes"},
			},
			[]BatchTask{
				{ID: taskID, Inputs: []TaskInput{{ObjectID: inID}}, Outputs: []ids.DataObjectID{outID}, TaskType: "echo"},
			},
		)
	}()

	f := server.recv()
	req := f.Body.(rpcapi.SubmitBatchReq)
	require.Equal(t, session, req.SessionID)
	require.Len(t, req.Objects, 2)
	require.Equal(t, inID, req.Objects[0].ID)
	require.Equal(t, []byte("hi"), req.Objects[0].Data)
	require.Len(t, req.Tasks, 1)
	require.Equal(t, taskID, req.Tasks[0].ID)
	require.Equal(t, []ids.DataObjectID{outID}, req.Tasks[0].Outputs)
	server.reply(f.ReqID, rpcapi.SubmitBatchResp{})
	require.NoError(t, <-errCh)
}

func TestCloseSessionAndUnkeepObject(t *testing.T) {
	c, server := dialTestClient(t)

	closeErrCh := make(chan error, 1)
	go func() { closeErrCh <- c.CloseSession(context.Background(), ids.SessionID(3)) }()
	f := server.recv()
	require.Equal(t, ids.SessionID(3), f.Body.(rpcapi.CloseSessionReq).SessionID)
	server.reply(f.ReqID, rpcapi.CloseSessionResp{})
	require.NoError(t, <-closeErrCh)

	objID := ids.DataObjectID{Session: 3, Local: 5}
	unkeepErrCh := make(chan error, 1)
	go func() { unkeepErrCh <- c.UnkeepObject(context.Background(), objID) }()
	f = server.recv()
	require.Equal(t, objID, f.Body.(rpcapi.UnkeepObjectReq).ObjectID)
	server.reply(f.ReqID, rpcapi.UnkeepObjectResp{})
	require.NoError(t, <-unkeepErrCh)
}

func TestDialRegistrationRejected(t *testing.T) {
	addr, conns := acceptFake(t)

	done := make(chan error, 1)
	go func() {
		_, err := Dial(context.Background(), addr)
		done <- err
	}()

	server := <-conns
	f := server.recv()
	require.NoError(t, server.enc.Encode(&wireFrame{Type: 2, ReqID: f.ReqID, Body: rpcapi.ErrorResp{Kind: "Protocol", Message: "version mismatch"}}))

	require.Error(t, <-done)
}

func TestFinishEventNotification(t *testing.T) {
	c, server := dialTestClient(t)

	taskID := ids.TaskID{Session: 1, Local: 1}
	require.NoError(t, server.enc.Encode(&wireFrame{Type: wireRequest, ReqID: 0, Body: rpcapi.FinishEventPush{
		Kind: "task", SessionID: 1, TaskID: &taskID, Message: "done",
	}}))

	ev := <-c.Notices
	require.Equal(t, "task", ev.Kind)
	require.Equal(t, "done", ev.Message)
	require.Equal(t, &taskID, ev.TaskID)
}
