package physical

import "strings"

// probeFnSanitizer rewrites the symbol characters that cannot appear in a
// generated C identifier. Go symbols carry dots, slashes, and method
// receiver syntax ("github.com/x/pkg.(*Server).Handle").
var probeFnSanitizer = strings.NewReplacer(
	".", "_",
	"/", "_",
	"*", "_",
	"(", "_",
	")", "_",
	"-", "_",
)

// ProbeFnName generates the deterministic handler name for a placement on
// a symbol: probe_<placement>_<sanitized symbol>. The placement prefix is
// "entry" or "return"; the name is the handle the loader binds generated
// instrumentation code to.
func ProbeFnName(kind AttachKind, symbol string) string {
	placement := "entry"
	if kind == AttachReturn {
		placement = "return"
	}
	return "probe_" + placement + "_" + probeFnSanitizer.Replace(symbol)
}
