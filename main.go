package main

import "github.com/KaramelBytes/estimate-insight/cmd"

func main() {
	cmd.Execute()
}
