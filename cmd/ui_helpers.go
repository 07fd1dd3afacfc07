// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"-", "\\", "|", "/"}

// startInlineSpinner animates frames followed by text on the current line
// until the returned function is called, which clears the line.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
			select {
			case <-stop:
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s", line)
				i++
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
}
