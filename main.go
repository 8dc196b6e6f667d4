// Command harvester crawls a recipe site across every combination of its
// category filters and merges the results into a shared store.
package main

import "github.com/sikbang/recipe-harvester/cmd"

func main() {
	cmd.Execute()
}
