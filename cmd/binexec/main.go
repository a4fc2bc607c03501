// Command binexec loads and starts programs through the binfmt executor.
package main

import (
	"os"

	"github.com/criyle/go-binfmt/cmd/binexec/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
