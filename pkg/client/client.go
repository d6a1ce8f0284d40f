// Package client is a Go SDK over the RPC control endpoint's
// ClientService capability (spec.md §4.6): it registers a connection as a
// client, opens/closes sessions, and submits objects and tasks.
package client

import (
	"context"
	"fmt"

	"github.com/cuemby/rain/pkg/ids"
	"github.com/cuemby/rain/pkg/rpcapi"
)

// FinishEvent is a client-observable terminal transition of a task or
// object this client subscribed to via Notify (see SubmitObject/SubmitTask).
type FinishEvent struct {
	Kind       string
	SessionID  ids.SessionID
	TaskID     *ids.TaskID
	ObjectID   *ids.DataObjectID
	Message    string
	Additional map[string]string
}

// TaskInput is one input edge for SubmitTask.
type TaskInput struct {
	ObjectID ids.DataObjectID
	Label    string
	Path     string
}

// Client is a registered connection to Rain's RPC control endpoint.
type Client struct {
	conn    *rpcapi.Conn
	Notices <-chan FinishEvent
}

// Dial connects to addr and registers as a client (spec.md §4.6's
// register_as_client). The returned Client's Notices channel delivers a
// FinishEvent for every object/task submitted with Notify set to true.
func Dial(ctx context.Context, addr string) (*Client, error) {
	notices := make(chan FinishEvent, 64)
	handler := func(body any) (any, error) {
		push, ok := body.(rpcapi.FinishEventPush)
		if !ok {
			return nil, fmt.Errorf("unexpected push type %T", body)
		}
		notices <- FinishEvent{
			Kind:       push.Kind,
			SessionID:  push.SessionID,
			TaskID:     push.TaskID,
			ObjectID:   push.ObjectID,
			Message:    push.Message,
			Additional: push.Additional,
		}
		return nil, nil
	}

	conn, err := rpcapi.Dial(addr, handler)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if _, err := conn.Call(ctx, rpcapi.RegisterAsClientReq{Version: rpcapi.ClientProtocolVersion}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("register as client: %w", err)
	}

	return &Client{conn: conn, Notices: notices}, nil
}

// Close disconnects from the server.
func (c *Client) Close() error {
	return c.conn.Close()
}

// OpenSession opens a new session (spec.md §4.4's add_session).
func (c *Client) OpenSession(ctx context.Context) (ids.SessionID, error) {
	resp, err := c.conn.Call(ctx, rpcapi.OpenSessionReq{})
	if err != nil {
		return 0, err
	}
	return resp.(rpcapi.OpenSessionResp).SessionID, nil
}

// CloseSession tears down a session (spec.md §4.4's remove_session).
func (c *Client) CloseSession(ctx context.Context, session ids.SessionID) error {
	_, err := c.conn.Call(ctx, rpcapi.CloseSessionReq{SessionID: session})
	return err
}

// SubmitObjectOpts configures SubmitObject.
type SubmitObjectOpts struct {
	ClientKeep bool
	Label      string
	Data       []byte
	Additional map[string]string
	Notify     bool
}

// SubmitObject adds a data object to session under id (spec.md §4.4's
// add_object).
func (c *Client) SubmitObject(ctx context.Context, session ids.SessionID, id ids.DataObjectID, objectType string, opts SubmitObjectOpts) error {
	_, err := c.conn.Call(ctx, rpcapi.SubmitObjectReq{
		SessionID:  session,
		ID:         id,
		ObjectType: objectType,
		ClientKeep: opts.ClientKeep,
		Label:      opts.Label,
		Data:       opts.Data,
		Additional: opts.Additional,
		Notify:     opts.Notify,
	})
	return err
}

// SubmitTaskOpts configures SubmitTask.
type SubmitTaskOpts struct {
	Additional map[string]string
	Resources  ids.Resources
	Notify     bool
}

// SubmitTask adds a task to session under id, consuming inputs and
// producing outputs that must already have been submitted in the same
// session (spec.md §4.4's add_task).
func (c *Client) SubmitTask(ctx context.Context, session ids.SessionID, id ids.TaskID, inputs []TaskInput, outputs []ids.DataObjectID, taskType string, taskConfig []byte, opts SubmitTaskOpts) error {
	wireInputs := make([]rpcapi.TaskInputWire, 0, len(inputs))
	for _, in := range inputs {
		wireInputs = append(wireInputs, rpcapi.TaskInputWire{ObjectID: in.ObjectID, Label: in.Label, Path: in.Path})
	}
	_, err := c.conn.Call(ctx, rpcapi.SubmitTaskReq{
		SessionID:  session,
		ID:         id,
		Inputs:     wireInputs,
		Outputs:    outputs,
		TaskType:   taskType,
		TaskConfig: taskConfig,
		Additional: opts.Additional,
		Resources:  opts.Resources,
		Notify:     opts.Notify,
	})
	return err
}

// BatchObject is one object within a SubmitBatch call.
type BatchObject struct {
	ID         ids.DataObjectID
	ObjectType string
	ClientKeep bool
	Label      string
	Data       []byte
	Additional map[string]string
}

// BatchTask is one task within a SubmitBatch call. Inputs and Outputs may
// reference objects submitted earlier in the same batch as well as ones
// already present in the session.
type BatchTask struct {
	ID         ids.TaskID
	Inputs     []TaskInput
	Outputs    []ids.DataObjectID
	TaskType   string
	TaskConfig []byte
	Additional map[string]string
	Resources  ids.Resources
}

// SubmitBatch adds every object and task in one atomic call (spec.md
// §4.4/§4.6's batched verify_submit: "fails atomically, no partial
// apply"). Objects are staged before tasks, so a task in the batch may
// reference an object submitted alongside it.
func (c *Client) SubmitBatch(ctx context.Context, session ids.SessionID, objects []BatchObject, tasks []BatchTask) error {
	wireObjects := make([]rpcapi.SubmitBatchObjectWire, 0, len(objects))
	for _, o := range objects {
		wireObjects = append(wireObjects, rpcapi.SubmitBatchObjectWire{
			ID:         o.ID,
			ObjectType: o.ObjectType,
			ClientKeep: o.ClientKeep,
			Label:      o.Label,
			Data:       o.Data,
			Additional: o.Additional,
		})
	}

	wireTasks := make([]rpcapi.SubmitBatchTaskWire, 0, len(tasks))
	for _, t := range tasks {
		wireInputs := make([]rpcapi.TaskInputWire, 0, len(t.Inputs))
		for _, in := range t.Inputs {
			wireInputs = append(wireInputs, rpcapi.TaskInputWire{ObjectID: in.ObjectID, Label: in.Label, Path: in.Path})
		}
		wireTasks = append(wireTasks, rpcapi.SubmitBatchTaskWire{
			ID:         t.ID,
			Inputs:     wireInputs,
			Outputs:    t.Outputs,
			TaskType:   t.TaskType,
			TaskConfig: t.TaskConfig,
			Additional: t.Additional,
			Resources:  t.Resources,
		})
	}

	_, err := c.conn.Call(ctx, rpcapi.SubmitBatchReq{
		SessionID: session,
		Objects:   wireObjects,
		Tasks:     wireTasks,
	})
	return err
}

// UnkeepObject clears an object's client-keep flag (spec.md §4.4's
// unkeep_object).
func (c *Client) UnkeepObject(ctx context.Context, id ids.DataObjectID) error {
	_, err := c.conn.Call(ctx, rpcapi.UnkeepObjectReq{ObjectID: id})
	return err
}
