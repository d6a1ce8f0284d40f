package rpcapi

import (
	"github.com/cuemby/rain/pkg/driver"
	"github.com/cuemby/rain/pkg/graph"
	"github.com/cuemby/rain/pkg/rainerr"
)

// requireClient fails any ClientService call arriving before this
// connection has successfully registered as a client.
func (b *bootstrapConn) requireClient() error {
	if b.client == nil {
		return rainerr.Protocolf("connection is not registered as a client")
	}
	return nil
}

// handleOpenSession is ClientService's add_session (spec.md §4.4).
func (b *bootstrapConn) handleOpenSession(_ OpenSessionReq) (OpenSessionResp, error) {
	if err := b.requireClient(); err != nil {
		return OpenSessionResp{}, err
	}
	var s *graph.Session
	b.server.do(func() {
		s = b.server.driver.AddSession(b.client)
	})
	return OpenSessionResp{SessionID: s.ID}, nil
}

// handleCloseSession is ClientService's remove_session (spec.md §4.4).
func (b *bootstrapConn) handleCloseSession(req CloseSessionReq) (CloseSessionResp, error) {
	if err := b.requireClient(); err != nil {
		return CloseSessionResp{}, err
	}
	var err error
	b.server.do(func() {
		err = b.server.driver.RemoveSession(req.SessionID)
	})
	return CloseSessionResp{}, err
}

// handleSubmitObject is ClientService's add_object (spec.md §4.4). When
// Notify is set, a FinishHook is attached that pushes a FinishEventPush
// back over this same connection once the object reaches a terminal
// state, folding spec.md's loosely worded "subscribe to object finish
// hooks" into the submission call itself.
func (b *bootstrapConn) handleSubmitObject(req SubmitObjectReq) (SubmitObjectResp, error) {
	if err := b.requireClient(); err != nil {
		return SubmitObjectResp{}, err
	}

	var (
		session *graph.Session
		ok      bool
		err     error
	)
	b.server.do(func() {
		session, ok = b.server.driver.Graph.GetSession(req.SessionID)
		if !ok {
			err = rainerr.Validationf("unknown session %s", req.SessionID)
			return
		}
		var obj *graph.DataObject
		obj, err = b.server.driver.AddObject(session, req.ID, req.ObjectType, req.ClientKeep, req.Label, req.Data, req.Additional)
		if err != nil || !req.Notify {
			return
		}
		objID := req.ID
		sessionID := req.SessionID
		obj.FinishHooks = append(obj.FinishHooks, func(ev *graph.FinishEvent) {
			_ = b.conn.codec.send(frame{Type: frameRequest, ReqID: 0, Body: FinishEventPush{
				Kind:       "object",
				SessionID:  sessionID,
				ObjectID:   &objID,
				Message:    ev.Message,
				Additional: ev.Additional,
			}})
		})
	})
	return SubmitObjectResp{}, err
}

// handleSubmitTask is ClientService's add_task (spec.md §4.4). Inputs and
// outputs are resolved from already-submitted objects in the same
// session; Notify works the same way as handleSubmitObject's.
func (b *bootstrapConn) handleSubmitTask(req SubmitTaskReq) (SubmitTaskResp, error) {
	if err := b.requireClient(); err != nil {
		return SubmitTaskResp{}, err
	}

	var err error
	b.server.do(func() {
		session, ok := b.server.driver.Graph.GetSession(req.SessionID)
		if !ok {
			err = rainerr.Validationf("unknown session %s", req.SessionID)
			return
		}

		inputs := make([]graph.TaskInput, 0, len(req.Inputs))
		for _, in := range req.Inputs {
			obj, ok := b.server.driver.Graph.GetObject(in.ObjectID)
			if !ok {
				err = rainerr.Validationf("unknown input object %s", in.ObjectID)
				return
			}
			inputs = append(inputs, graph.TaskInput{Object: obj, Label: in.Label, Path: in.Path})
		}

		outputs := make([]*graph.DataObject, 0, len(req.Outputs))
		for _, oid := range req.Outputs {
			obj, ok := b.server.driver.Graph.GetObject(oid)
			if !ok {
				err = rainerr.Validationf("unknown output object %s", oid)
				return
			}
			outputs = append(outputs, obj)
		}

		var task *graph.Task
		task, err = b.server.driver.AddTask(session, req.ID, inputs, outputs, req.TaskType, req.TaskConfig, req.Additional, req.Resources)
		if err != nil || !req.Notify {
			return
		}
		taskID := req.ID
		sessionID := req.SessionID
		task.FinishHooks = append(task.FinishHooks, func(ev *graph.FinishEvent) {
			_ = b.conn.codec.send(frame{Type: frameRequest, ReqID: 0, Body: FinishEventPush{
				Kind:       "task",
				SessionID:  sessionID,
				TaskID:     &taskID,
				Message:    ev.Message,
				Additional: ev.Additional,
			}})
		})
	})
	return SubmitTaskResp{}, err
}

// handleSubmitBatch is ClientService's batched add_object/add_task call
// (spec.md §4.4/§4.6's batched verify_submit): every object and task in the
// request is staged and committed as one atomic pass over
// driver.Driver.SubmitBatch — if any entry is rejected, nothing in the
// batch is left applied.
func (b *bootstrapConn) handleSubmitBatch(req SubmitBatchReq) (SubmitBatchResp, error) {
	if err := b.requireClient(); err != nil {
		return SubmitBatchResp{}, err
	}

	var err error
	b.server.do(func() {
		session, ok := b.server.driver.Graph.GetSession(req.SessionID)
		if !ok {
			err = rainerr.Validationf("unknown session %s", req.SessionID)
			return
		}

		objects := make([]driver.BatchObjectSpec, 0, len(req.Objects))
		for _, o := range req.Objects {
			objects = append(objects, driver.BatchObjectSpec{
				ID:         o.ID,
				ObjectType: o.ObjectType,
				ClientKeep: o.ClientKeep,
				Label:      o.Label,
				Data:       o.Data,
				Additional: o.Additional,
			})
		}

		tasks := make([]driver.BatchTaskSpec, 0, len(req.Tasks))
		for _, t := range req.Tasks {
			inputs := make([]driver.BatchTaskInput, 0, len(t.Inputs))
			for _, in := range t.Inputs {
				inputs = append(inputs, driver.BatchTaskInput{ObjectID: in.ObjectID, Label: in.Label, Path: in.Path})
			}
			tasks = append(tasks, driver.BatchTaskSpec{
				ID:         t.ID,
				Inputs:     inputs,
				OutputIDs:  t.Outputs,
				TaskType:   t.TaskType,
				TaskConfig: t.TaskConfig,
				Additional: t.Additional,
				Resources:  t.Resources,
			})
		}

		_, _, err = b.server.driver.SubmitBatch(session, objects, tasks)
	})
	return SubmitBatchResp{}, err
}

// handleUnkeepObject is ClientService's unkeep_object (spec.md §4.4).
func (b *bootstrapConn) handleUnkeepObject(req UnkeepObjectReq) (UnkeepObjectResp, error) {
	if err := b.requireClient(); err != nil {
		return UnkeepObjectResp{}, err
	}
	var err error
	b.server.do(func() {
		err = b.server.driver.UnkeepObject(req.ObjectID)
	})
	return UnkeepObjectResp{}, err
}
