package itc

// Lowering traces carry the source location of the node being processed, so
// a -v run of the compiler reads like an annotated walk of the program.

import (
	"fmt"

	"github.com/grailbio/base/log"
)

// Debugf logs a debug-level message prefixed with the node's source location
// and rendering. If the location is unknown, pass &ASTUnknown{}.
func Debugf(ast ASTNode, format string, args ...interface{}) {
	if !log.At(log.Debug) {
		return
	}
	log.Debug.Printf("%s: %s: %s", ast.pos(), ast, fmt.Sprintf(format, args...))
}
