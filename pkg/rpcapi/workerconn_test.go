package rpcapi

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/rain/pkg/graph"
	"github.com/cuemby/rain/pkg/ids"
)

func newTestSession() *graph.Session {
	client := graph.NewClient(ids.ClientID{IP: net.ParseIP("203.0.113.1"), Port: 1})
	return graph.NewSession(1, client)
}

func TestWorkerControlAddNodes(t *testing.T) {
	client, server := connPair(t)
	routeReplies(client)
	wc := &workerControl{conn: client}

	session := newTestSession()
	obj := graph.NewDataObject(session, ids.DataObjectID{Session: 1, Local: 1}, "bytes", false, "out", nil, nil)
	entry := graph.NewObjectEntry{Object: obj, Placement: ids.WorkerID{}, Assigned: true}

	task, err := graph.NewTask(session, ids.TaskID{Session: 1, Local: 1}, nil, []*graph.DataObject{obj}, "echo", nil, nil, ids.Resources{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- wc.AddNodes(context.Background(), []graph.NewObjectEntry{entry}, []*graph.Task{task}) }()

	f, err := server.codec.recv()
	require.NoError(t, err)
	req := f.Body.(AddNodesReq)
	require.Len(t, req.Objects, 1)
	require.Equal(t, obj.ID, req.Objects[0].ID)
	require.Len(t, req.Tasks, 1)
	require.Equal(t, task.ID, req.Tasks[0].ID)
	require.Equal(t, []ids.DataObjectID{obj.ID}, req.Tasks[0].Outputs)

	require.NoError(t, server.reply(f.ReqID, AddNodesResp{}))
	require.NoError(t, <-done)
}

func TestWorkerControlUnassignObjects(t *testing.T) {
	client, server := connPair(t)
	routeReplies(client)
	wc := &workerControl{conn: client}
	objID := ids.DataObjectID{Session: 1, Local: 2}

	done := make(chan error, 1)
	go func() { done <- wc.UnassignObjects(context.Background(), []ids.DataObjectID{objID}) }()

	f, err := server.codec.recv()
	require.NoError(t, err)
	req := f.Body.(UnassignObjectsReq)
	require.Equal(t, []ids.DataObjectID{objID}, req.Objects)
	require.NoError(t, server.reply(f.ReqID, UnassignObjectsResp{}))
	require.NoError(t, <-done)
}

func TestWorkerControlStopTasks(t *testing.T) {
	client, server := connPair(t)
	routeReplies(client)
	wc := &workerControl{conn: client}
	taskID := ids.TaskID{Session: 1, Local: 3}

	done := make(chan error, 1)
	go func() { done <- wc.StopTasks(context.Background(), []ids.TaskID{taskID}) }()

	f, err := server.codec.recv()
	require.NoError(t, err)
	req := f.Body.(StopTasksReq)
	require.Equal(t, []ids.TaskID{taskID}, req.Tasks)
	require.NoError(t, server.reply(f.ReqID, StopTasksResp{}))
	require.NoError(t, <-done)
}

func TestWorkerControlProbeResources(t *testing.T) {
	client, server := connPair(t)
	routeReplies(client)
	wc := &workerControl{conn: client}

	type result struct {
		res ids.Resources
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := wc.ProbeResources(context.Background())
		done <- result{res, err}
	}()

	f, err := server.codec.recv()
	require.NoError(t, err)
	require.IsType(t, ProbeResourcesReq{}, f.Body)
	require.NoError(t, server.reply(f.ReqID, ProbeResourcesResp{Resources: ids.Resources{CPUs: 4}}))

	r := <-done
	require.NoError(t, r.err)
	require.Equal(t, 4, r.res.CPUs)
}

func TestTaskStateFromWire(t *testing.T) {
	cases := map[string]graph.TaskState{
		"Running":  graph.TaskRunning,
		"Finished": graph.TaskFinished,
		"Failed":   graph.TaskFailed,
	}
	for wire, want := range cases {
		got, err := taskStateFromWire(wire)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := taskStateFromWire("NotARealState")
	require.Error(t, err)
}
