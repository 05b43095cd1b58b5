// Command superpose runs the policy superposition evaluator.
package main

func main() {
	Execute()
}
