package itc

import (
	"fmt"
	"io"
)

// PrintTHIR writes an indented human-readable listing of the tree rooted at
// thir: kinds, names, resolved types and children. Diagnostics only; the
// printer has no semantic effect.
func PrintTHIR(w io.Writer, types *TypeTable, thir *THIR) {
	printTHIR(w, types, thir, 0)
}

func printTHIR(w io.Writer, types *TypeTable, thir *THIR, indent int) {
	ind := func(n int) {
		for i := 0; i < n; i++ {
			io.WriteString(w, "  ") // nolint: errcheck
		}
	}
	ind(indent)
	if thir == nil {
		io.WriteString(w, "<nil>\n") // nolint: errcheck
		return
	}
	fmt.Fprintf(w, "<%s type=%q>\n", thir.Kind, types.String(thir.Type))

	switch thir.Kind {
	case THIRProgram, THIRBlock:
		for _, s := range thir.Statements {
			printTHIR(w, types, s, indent+1)
		}
	case THIRBinary:
		printTHIR(w, types, thir.Left, indent+1)
		ind(indent + 1)
		fmt.Fprintf(w, "<operator %q>\n", opText(thir.Op))
		printTHIR(w, types, thir.Right, indent+1)
	case THIRCall:
		ind(indent + 1)
		fmt.Fprintf(w, "<callee %s>\n", thir.Callee.Name.Str())
		for _, a := range thir.Args {
			printTHIR(w, types, a, indent+1)
		}
	case THIRMemberAccess:
		printTHIR(w, types, thir.Base, indent+1)
		ind(indent + 1)
		fmt.Fprintf(w, "<member %s index=%d>\n", thir.Member.Str(), thir.MemberIndex)
	case THIRIdentifier:
		ind(indent + 1)
		fmt.Fprintf(w, "<name %s>\n", thir.Name.Str())
	case THIRNumber, THIRString:
		ind(indent + 1)
		fmt.Fprintf(w, "<literal %q>\n", thir.Text)
	case THIRReturn:
		if thir.Expr != nil {
			printTHIR(w, types, thir.Expr, indent+1)
		}
	case THIRFunction:
		ind(indent + 1)
		attrs := ""
		if thir.IsExtern {
			attrs += " extern"
		}
		if thir.IsEntry {
			attrs += " entry"
		}
		fmt.Fprintf(w, "<name %s%s>\n", thir.Name.Str(), attrs)
		for _, p := range thir.Params {
			ind(indent + 1)
			if p.IsVarargs {
				io.WriteString(w, "<param ...>\n") // nolint: errcheck
				continue
			}
			fmt.Fprintf(w, "<param %s %q>\n", p.Name.Str(), types.String(p.Type))
		}
		if thir.Body != nil {
			printTHIR(w, types, thir.Body, indent+1)
		}
	case THIRTypeDecl:
		ind(indent + 1)
		fmt.Fprintf(w, "<name %s>\n", thir.Name.Str())
		for _, m := range thir.Members {
			ind(indent + 1)
			fmt.Fprintf(w, "<member %s %q>\n", m.Name.Str(), types.String(m.Type))
		}
	case THIRVarDecl:
		ind(indent + 1)
		fmt.Fprintf(w, "<name %s>\n", thir.Name.Str())
		if thir.Expr != nil {
			printTHIR(w, types, thir.Expr, indent+1)
		}
	}
}
