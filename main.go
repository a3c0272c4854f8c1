package main

import "github.com/Norgate-AV/cachestat/cmd"

func main() {
	cmd.Execute()
}
