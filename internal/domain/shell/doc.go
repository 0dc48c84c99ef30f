/*
Package shell manages interactive remote shell sessions.

A session is opened once and then receives commands one at a time. The
remote shell is line-oriented and never signals where a command's output
ends, so the manager reads until the stream goes quiet, normalizes what it
saw and asks the shell for its exit status and working directory with a
marker line.

	m := shell.NewManager(dialer, shell.OptionsFromConfig(cfg.Shell), logger)
	res, err := m.Connect(ctx, shell.ConnectRequest{Host: "nas", Username: "pi", Secret: pw})
	out, err := m.Execute(ctx, res.SessionID, "df -h")

Sessions left idle are closed by Run.
*/
package shell
