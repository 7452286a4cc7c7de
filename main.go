package main

import "github.com/KaramelBytes/airstat-cli/cmd"

func main() {
	cmd.Execute()
}
