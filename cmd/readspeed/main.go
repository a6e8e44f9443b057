package main

import "github.com/CTAG07/readspeed/internal/cli"

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cli.SetVersion(Version, Commit, BuildDate)
	cli.Execute()
}
