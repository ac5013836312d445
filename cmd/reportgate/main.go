// Package main is the entry point for reportgate.
package main

func main() {
	Execute()
}
