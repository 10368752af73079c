package cos

import "fmt"

func assertMsg(args []any) string {
	return fmt.Sprintln(append([]any{"assertion failed:"}, args...)...)
}
