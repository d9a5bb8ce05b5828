package common

import (
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
)

// SafeGo runs fn in a goroutine named name. A panic inside fn is logged with its
// stack instead of taking the process down.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if logger == nil {
					fmt.Fprintf(os.Stderr, "panic in goroutine %s: %v\n%s\n", name, r, stackTrace())
					return
				}
				logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", stackTrace()).
					Msg("Recovered from panic in goroutine")
			}
		}()
		fn()
	}()
}
