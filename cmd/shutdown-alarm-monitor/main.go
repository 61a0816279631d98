package main

import "github.com/oshokin/shutdown-alarm-monitor/cmd/shutdown-alarm-monitor/cmd"

func main() {
	cmd.Execute()
}
