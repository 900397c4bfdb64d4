package main

import "busmon-analytics/internal/cli"

func main() {
	cli.Execute()
}
