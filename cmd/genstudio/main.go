package main

import "genstudio/internal/cli"

func main() {
	cli.Execute()
}
