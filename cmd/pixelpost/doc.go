// Package main hosts the pixelpost CLI entrypoint and command graph.
//
// "pixelpost run" publishes the head of the queue and is meant for cron or a
// systemd timer. The remaining commands inspect and edit the queue, show the
// publish journal, check readiness, scaffold configuration, and send a test
// notification. Configuration is resolved once per invocation in
// commandContext so subcommands stay declarative.
package main
