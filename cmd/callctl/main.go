// callctl is a terminal client for the Liberty realtime core: log in, watch
// for incoming calls and notifications, place calls, and browse call history.
// It stands in for the web/mobile UI layers during development.
package main

import "github.com/carnage999-max/liberty-realtime/cmd/callctl/cli"

func main() {
	cli.Execute()
}
