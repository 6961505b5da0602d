package main

import "fulfillment-service/cmd"

func main() {
	cmd.Execute()
}
