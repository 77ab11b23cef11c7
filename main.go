package main

import "herekitty/internal/cli"

func main() {
	cli.Execute()
}
