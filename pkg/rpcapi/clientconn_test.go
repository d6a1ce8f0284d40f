package rpcapi

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/rain/pkg/driver"
	"github.com/cuemby/rain/pkg/graph"
	"github.com/cuemby/rain/pkg/ids"
	"github.com/cuemby/rain/pkg/scheduler"
)

// newTestServer builds a Server around a real Driver and runs its reactor
// loop in the background, so handlers that call server.do(...) behave the
// same way they would wired up to a listening Server.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	d := driver.New(scheduler.NewRandomScheduler(true, 1), nil)
	s := NewServer(d, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.run(ctx) }()
	t.Cleanup(cancel)
	return s
}

func newTestBootstrapClient(t *testing.T, s *Server) (*bootstrapConn, *graph.Client) {
	t.Helper()
	var (
		client *graph.Client
		err    error
	)
	s.do(func() {
		client, err = s.driver.AddClient(&net.TCPAddr{IP: net.ParseIP("192.0.2.1"), Port: 1})
	})
	require.NoError(t, err)
	_, conn := connPair(t)
	return &bootstrapConn{server: s, conn: conn, client: client}, client
}

func TestHandleOpenSessionRequiresRegisteredClient(t *testing.T) {
	s := newTestServer(t)
	b := &bootstrapConn{server: s}

	_, err := b.handleOpenSession(OpenSessionReq{})
	require.Error(t, err)
}

func TestHandleOpenSessionCreatesSession(t *testing.T) {
	s := newTestServer(t)
	b, _ := newTestBootstrapClient(t, s)

	resp, err := b.handleOpenSession(OpenSessionReq{})
	require.NoError(t, err)
	require.NotZero(t, resp.SessionID)
}

func TestHandleCloseSessionRemovesSession(t *testing.T) {
	s := newTestServer(t)
	b, _ := newTestBootstrapClient(t, s)

	opened, err := b.handleOpenSession(OpenSessionReq{})
	require.NoError(t, err)

	_, err = b.handleCloseSession(CloseSessionReq{SessionID: opened.SessionID})
	require.NoError(t, err)

	var ok bool
	s.do(func() { _, ok = s.driver.Graph.GetSession(opened.SessionID) })
	require.False(t, ok)
}

func TestHandleCloseSessionUnknownSession(t *testing.T) {
	s := newTestServer(t)
	b, _ := newTestBootstrapClient(t, s)

	_, err := b.handleCloseSession(CloseSessionReq{SessionID: ids.SessionID(999)})
	require.Error(t, err)
}

func TestHandleSubmitObjectAndTask(t *testing.T) {
	s := newTestServer(t)
	b, _ := newTestBootstrapClient(t, s)

	opened, err := b.handleOpenSession(OpenSessionReq{})
	require.NoError(t, err)
	sessionID := opened.SessionID

	inID := ids.DataObjectID{Session: sessionID, Local: 1}
	_, err = b.handleSubmitObject(SubmitObjectReq{SessionID: sessionID, ID: inID, ObjectType: "bytes", Data: []byte("hi")})
	require.NoError(t, err)

	outID := ids.DataObjectID{Session: sessionID, Local: 2}
	_, err = b.handleSubmitObject(SubmitObjectReq{SessionID: sessionID, ID: outID, ObjectType: "bytes"})
	require.NoError(t, err)

	taskID := ids.TaskID{Session: sessionID, Local: 1}
	_, err = b.handleSubmitTask(SubmitTaskReq{
		SessionID: sessionID,
		ID:        taskID,
		Inputs:    []TaskInputWire{{ObjectID: inID}},
		Outputs:   []ids.DataObjectID{outID},
		TaskType:  "echo",
	})
	require.NoError(t, err)

	var task *graph.Task
	s.do(func() { task, _ = s.driver.Graph.GetTask(taskID) })
	require.NotNil(t, task)
	require.Equal(t, graph.TaskReady, task.State)
}

func TestHandleSubmitTaskUnknownInput(t *testing.T) {
	s := newTestServer(t)
	b, _ := newTestBootstrapClient(t, s)

	opened, err := b.handleOpenSession(OpenSessionReq{})
	require.NoError(t, err)

	_, err = b.handleSubmitTask(SubmitTaskReq{
		SessionID: opened.SessionID,
		ID:        ids.TaskID{Session: opened.SessionID, Local: 1},
		Inputs:    []TaskInputWire{{ObjectID: ids.DataObjectID{Session: opened.SessionID, Local: 99}}},
		TaskType:  "echo",
	})
	require.Error(t, err)
}

func TestHandleSubmitBatchCommitsObjectsAndTasksTogether(t *testing.T) {
	s := newTestServer(t)
	b, _ := newTestBootstrapClient(t, s)

	opened, err := b.handleOpenSession(OpenSessionReq{})
	require.NoError(t, err)
	sessionID := opened.SessionID

	inID := ids.DataObjectID{Session: sessionID, Local: 1}
	outID := ids.DataObjectID{Session: sessionID, Local: 2}
	taskID := ids.TaskID{Session: sessionID, Local: 1}

	_, err = b.handleSubmitBatch(SubmitBatchReq{
		SessionID: sessionID,
		Objects: []SubmitBatchObjectWire{
			{ID: inID, ObjectType: "bytes", Data: []byte("hi")},
			{ID: outID, ObjectType: "bytes"},
		},
		Tasks: []SubmitBatchTaskWire{
			{ID: taskID, Inputs: []TaskInputWire{{ObjectID: inID}}, Outputs: []ids.DataObjectID{outID}, TaskType: "echo"},
		},
	})
	require.NoError(t, err)

	var task *graph.Task
	s.do(func() { task, _ = s.driver.Graph.GetTask(taskID) })
	require.NotNil(t, task)
	require.Equal(t, graph.TaskReady, task.State)
}

func TestHandleSubmitBatchRejectsUnknownSession(t *testing.T) {
	s := newTestServer(t)
	b, _ := newTestBootstrapClient(t, s)

	_, err := b.handleSubmitBatch(SubmitBatchReq{SessionID: ids.SessionID(999)})
	require.Error(t, err)
}

func TestHandleSubmitBatchFailsAtomicallyLeavesNoObjects(t *testing.T) {
	s := newTestServer(t)
	b, _ := newTestBootstrapClient(t, s)

	opened, err := b.handleOpenSession(OpenSessionReq{})
	require.NoError(t, err)
	sessionID := opened.SessionID

	objID := ids.DataObjectID{Session: sessionID, Local: 1}
	taskID := ids.TaskID{Session: sessionID, Local: 1}
	missing := ids.DataObjectID{Session: sessionID, Local: 99}

	_, err = b.handleSubmitBatch(SubmitBatchReq{
		SessionID: sessionID,
		Objects:   []SubmitBatchObjectWire{{ID: objID, ObjectType: "bytes", Data: []byte("x")}},
		Tasks:     []SubmitBatchTaskWire{{ID: taskID, Outputs: []ids.DataObjectID{missing}, TaskType: "t"}},
	})
	require.Error(t, err)

	var ok bool
	s.do(func() { _, ok = s.driver.Graph.GetObject(objID) })
	require.False(t, ok)
}

func TestHandleUnkeepObject(t *testing.T) {
	s := newTestServer(t)
	b, _ := newTestBootstrapClient(t, s)

	opened, err := b.handleOpenSession(OpenSessionReq{})
	require.NoError(t, err)

	objID := ids.DataObjectID{Session: opened.SessionID, Local: 1}
	_, err = b.handleSubmitObject(SubmitObjectReq{SessionID: opened.SessionID, ID: objID, ObjectType: "bytes", ClientKeep: true, Data: []byte("x")})
	require.NoError(t, err)

	_, err = b.handleUnkeepObject(UnkeepObjectReq{ObjectID: objID})
	require.NoError(t, err)
}
