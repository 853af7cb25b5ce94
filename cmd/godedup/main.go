package main

import "github.com/dbsmedya/godedup/cmd/godedup/cmd"

func main() {
	cmd.Execute()
}
