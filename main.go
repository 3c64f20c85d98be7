// Command itc compiles one It source file into a native binary. The middle
// end lowers the program into a typed IR in dependency order; the emitted
// LLVM IR is handed to the external C compiler for linking.
//
// Usage: itc [-r] [-o binary] [-print-thir] file.it
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/itc/itc"
)

var (
	releaseFlag   = flag.Bool("r", false, "Build with the release optimization level")
	outputFlag    = flag.String("o", "", "Binary output path. Defaults to the source name without its extension")
	printTHIRFlag = flag.Bool("print-thir", false, "Dump the typed IR after lowering and before emission")
	keepIRFlag    = flag.Bool("keep-ir", false, "Leave the generated .ll file next to the output binary")
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: itc [flags] file.it\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	must.Truef(flag.NArg() == 1, "usage: itc [flags] file.it")
	path := flag.Arg(0)

	ctx := itc.NewContext()
	program, err := itc.CompileFile(ctx, path)
	if err != nil {
		log.Error.Printf("%v", err)
		os.Exit(1)
	}
	if *printTHIRFlag {
		itc.PrintTHIR(os.Stdout, ctx.Types, program)
	}
	if err := ctx.Build(path, itc.BuildOpts{
		Output:  *outputFlag,
		Release: *releaseFlag,
		KeepIR:  *keepIRFlag,
	}); err != nil {
		log.Error.Printf("%v", err)
		os.Exit(1)
	}
}
