// textfsm-parse - TextFSM batch parser
//
// textfsm-parse applies TextFSM templates to network device logs and writes
// one CSV or JSON file per (log file, template) pair.
package main

import (
	"os"

	"github.com/riceball-k/textfsm-parse-to-csv/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
