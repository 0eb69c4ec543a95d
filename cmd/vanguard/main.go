// Command vanguard plays tactical battles defined by scenario files.
package main

func main() {
	Execute()
}
