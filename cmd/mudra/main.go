// Command mudra recognizes hand gestures from a camera or a landmark
// recording and triggers plugin actions for them.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
