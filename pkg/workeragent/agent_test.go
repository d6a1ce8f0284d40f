package workeragent

import (
	"context"
	"encoding/gob"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/rain/pkg/ids"
	"github.com/cuemby/rain/pkg/rpcapi"
)

// wireFrame mirrors rpcapi's unexported frame type structurally, relying
// on the process-wide gob registry rpcapi's init() populates.
type wireFrame struct {
	Type  uint8
	ReqID uint64
	Body  any
}

const (
	wireRequest  uint8 = 0
	wireResponse uint8 = 1
)

type fakeServerConn struct {
	t      *testing.T
	enc    *gob.Encoder
	dec    *gob.Decoder
	nextID uint64
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

// call sends body as a fresh request from the fake server to the agent and
// returns the agent's reply frame.
func (f *fakeServerConn) call(body any) wireFrame {
	f.t.Helper()
	f.nextID++
	id := f.nextID
	require.NoError(f.t, f.enc.Encode(&wireFrame{Type: wireRequest, ReqID: id, Body: body}))
	for {
		fr := f.recv()
		if fr.Type != wireRequest {
			require.Equal(f.t, id, fr.ReqID)
			return fr
		}
		// Agent-initiated request (e.g. updates_from_worker) arriving
		// before our reply; not expected by these tests.
		f.t.Fatalf("unexpected inbound request while awaiting reply: %#v", fr.Body)
	}
}

func dialTestAgent(t *testing.T, cfg Config) (*Agent, *fakeServerConn) {
	t.Helper()
	addr, conns := acceptFake(t)
	cfg.ServerAddr = addr

	done := make(chan struct {
		a   *Agent
		err error
	}, 1)
	go func() {
		a, err := Dial(context.Background(), cfg)
		done <- struct {
			a   *Agent
			err error
		}{a, err}
	}()

	server := <-conns
	f := server.recv()
	require.IsType(t, rpcapi.RegisterAsWorkerReq{}, f.Body)
	workerID := ids.WorkerID{IP: net.ParseIP("198.51.100.9"), Port: 9000}
	server.reply(f.ReqID, rpcapi.RegisterAsWorkerResp{WorkerID: workerID})

	r := <-done
	require.NoError(t, r.err)
	t.Cleanup(func() { _ = r.a.Close() })
	require.Equal(t, workerID, r.a.WorkerID())
	return r.a, server
}

func TestDialRegistersAsWorker(t *testing.T) {
	dialTestAgent(t, Config{Resources: ids.Resources{CPUs: 2}})
}

type recordingExecutor struct {
	sizes map[ids.DataObjectID]int64
}

func (e *recordingExecutor) Execute(_ context.Context, spec TaskSpec) TaskResult {
	sizes := make(map[ids.DataObjectID]int64, len(spec.Outputs))
	for _, o := range spec.Outputs {
		sizes[o] = e.sizes[o]
	}
	return TaskResult{OutputSizes: sizes}
}

func TestAddNodesRunsExecutorAndPushesFinished(t *testing.T) {
	outID := ids.DataObjectID{Session: 1, Local: 1}
	a, server := dialTestAgent(t, Config{Executor: &recordingExecutor{sizes: map[ids.DataObjectID]int64{outID: 42}}})

	taskID := ids.TaskID{Session: 1, Local: 1}
	reply := server.call(rpcapi.AddNodesReq{
		Tasks: []rpcapi.NewTaskWire{{ID: taskID, Outputs: []ids.DataObjectID{outID}, TaskType: "echo"}},
	})
	require.IsType(t, rpcapi.AddNodesResp{}, reply.Body)

	f := server.recv()
	require.Equal(t, wireRequest, f.Type)
	running := f.Body.(rpcapi.UpdatesFromWorkerReq)
	require.Len(t, running.TaskUpdates, 1)
	require.Equal(t, taskID, running.TaskUpdates[0].TaskID)
	require.Equal(t, "Running", running.TaskUpdates[0].NewState)
	server.reply(f.ReqID, rpcapi.UpdatesFromWorkerResp{})

	f = server.recv()
	require.Equal(t, wireRequest, f.Type)
	req := f.Body.(rpcapi.UpdatesFromWorkerReq)
	require.Len(t, req.TaskUpdates, 1)
	require.Equal(t, taskID, req.TaskUpdates[0].TaskID)
	require.Equal(t, "Finished", req.TaskUpdates[0].NewState)
	require.Len(t, req.ObjectUpdates, 1)
	require.Equal(t, int64(42), req.ObjectUpdates[0].Size)
	server.reply(f.ReqID, rpcapi.UpdatesFromWorkerResp{})

	_ = a
}

func TestAddNodesNoExecutorFailsTask(t *testing.T) {
	a, server := dialTestAgent(t, Config{})
	taskID := ids.TaskID{Session: 1, Local: 2}

	reply := server.call(rpcapi.AddNodesReq{Tasks: []rpcapi.NewTaskWire{{ID: taskID, TaskType: "echo"}}})
	require.IsType(t, rpcapi.AddNodesResp{}, reply.Body)

	f := server.recv()
	req := f.Body.(rpcapi.UpdatesFromWorkerReq)
	require.Len(t, req.TaskUpdates, 1)
	require.Equal(t, "Failed", req.TaskUpdates[0].NewState)
	require.Equal(t, "no executor configured", req.TaskUpdates[0].Error)
	server.reply(f.ReqID, rpcapi.UpdatesFromWorkerResp{})

	_ = a
}

func TestUnassignObjectsForgetsLocalSize(t *testing.T) {
	a, server := dialTestAgent(t, Config{})
	objID := ids.DataObjectID{Session: 1, Local: 3}
	a.objects[objID] = 10

	reply := server.call(rpcapi.UnassignObjectsReq{Objects: []ids.DataObjectID{objID}})
	require.IsType(t, rpcapi.UnassignObjectsResp{}, reply.Body)

	a.mu.Lock()
	_, ok := a.objects[objID]
	a.mu.Unlock()
	require.False(t, ok)
}

func TestStopTasksPushesFailedUpdate(t *testing.T) {
	_, server := dialTestAgent(t, Config{})
	taskID := ids.TaskID{Session: 1, Local: 4}

	reply := server.call(rpcapi.StopTasksReq{Tasks: []ids.TaskID{taskID}})
	require.IsType(t, rpcapi.StopTasksResp{}, reply.Body)

	f := server.recv()
	req := f.Body.(rpcapi.UpdatesFromWorkerReq)
	require.Len(t, req.TaskUpdates, 1)
	require.Equal(t, taskID, req.TaskUpdates[0].TaskID)
	require.Equal(t, "Failed", req.TaskUpdates[0].NewState)
	require.Equal(t, "stopped", req.TaskUpdates[0].Error)
	server.reply(f.ReqID, rpcapi.UpdatesFromWorkerResp{})
}

func TestProbeResourcesReturnsConfiguredResources(t *testing.T) {
	_, server := dialTestAgent(t, Config{Resources: ids.Resources{CPUs: 8}})

	reply := server.call(rpcapi.ProbeResourcesReq{})
	resp := reply.Body.(rpcapi.ProbeResourcesResp)
	require.Equal(t, 8, resp.Resources.CPUs)
}
