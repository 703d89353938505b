// Package lib provides a Go SDK to embed the kage approval flow in other programs.
//
// A [Client] owns a jail root, a queue of commands waiting for a decision and
// the runner that executes the approved ones inside the root. User interfaces
// receive the queued commands through a [Notifier] and decide on them with
// [Client.Approve] or [Client.Reject].
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{RootDir: "/tmp/jail"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	p, err := client.Submit(ctx, "ls -la", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res := client.Approve(ctx, p.ID)
//	fmt.Println(res.Status, res.Stdout)
//
// # Results
//
// Decisions never return Go errors, the outcome is always a [Result]:
//
//   - [ResultStatusDone]: the command ran and exited with 0.
//   - [ResultStatusRejected]: the command was not approved, nothing ran.
//   - [ResultStatusError]: the command exited with a non-zero code (ExitCode is set),
//     could not be started, or the request was unknown.
//
// # Files
//
// Files can be written, read and listed with paths relative to the root. Paths
// that resolve outside of the root fail with [ErrJailEscape].
//
// # History
//
// Every decided request is recorded. Set [Config].DBPath to persist the history
// in SQLite, otherwise it's kept in memory while the client lives.
package lib
