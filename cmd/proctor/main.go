// proctor watches a quiz taker through the webcam and microphone and
// counts suspicious events for the quiz session.
package main

import (
	"os"

	"github.com/teslashibe/go-proctor/cmd/proctor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
