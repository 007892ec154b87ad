// The main package for the catalog-etl executable.
package main

import (
	"github.com/comixlabs/catalog-etl/cmd"
)

func main() {
	cmd.Execute()
}
