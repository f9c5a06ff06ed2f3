package main

import "github.com/vibast-solutions/ms-go-payment-events/cmd"

func main() {
	cmd.Execute()
}
