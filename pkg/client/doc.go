/*
Package client provides a Go client library for Rain's RPC control
endpoint.

Unlike a generated gRPC stub, client is a hand-written wrapper over
pkg/rpcapi's gob/TCP transport: it registers the dialed connection as a
client (register_as_client), then exposes session/object/task submission
as plain Go methods.

# Usage

	c, err := client.Dial(ctx, "127.0.0.1:7210")
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	session, err := c.OpenSession(ctx)
	if err != nil {
		log.Fatal(err)
	}

	objID := ids.DataObjectID{Session: session, Local: 1}
	if err := c.SubmitObject(ctx, session, objID, "blob", client.SubmitObjectOpts{
		Data: []byte("hello"),
	}); err != nil {
		log.Fatal(err)
	}

# Finish notifications

Passing Notify: true to SubmitObject or SubmitTask subscribes the
connection to that entity's terminal transition; the Client's Notices
channel delivers a FinishEvent once the server pushes it.
*/
package client
