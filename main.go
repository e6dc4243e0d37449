package main

import "room-match-backend/cmd"

func main() {
	cmd.Run()
}
