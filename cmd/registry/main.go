// Command registry runs the schema and attestation registry API and its mirror.
package main

func main() {
	Execute()
}
