/*
Package provision installs game servers in the background.

Create validates a request, records the server in the inventory with
status "installing" and returns a task ID immediately. The installation
runs its steps on a detached goroutine, publishing each step's progress
and localized message to the task registry before doing the work:

	id, err := runner.Create(ctx, provision.Request{Type: "beammp", Name: "racing", Port: 30814})
	snap := runner.Status(id) // poll until snap.Phase.Terminal()

A failing step fails the task with "<step message>: <error>" and leaves
any files already written in place. Supported types are listed by
ServerTypes; artifact sources come from an embedded YAML catalog.
*/
package provision
