// Command chatctl is a terminal client for the hackmate chat server.
package main

func main() {
	Execute()
}
