// Package source prepares submitted code for compilation.
package source

import (
	"strings"

	"cppexec/internal/sandbox/spec"
	appErr "cppexec/pkg/errors"
)

// Prelude is the fixed set of common includes prepended to every submission.
const Prelude = `#include <iostream>
#include <string>
#include <vector>
#include <algorithm>
#include <cmath>
#include <cstdlib>
#include <climits>
#include <ctime>
#include <map>
#include <set>
#include <queue>
#include <stack>
#include <deque>
#include <list>
#include <bitset>
#include <utility>
#include <functional>
#include <numeric>
#include <iterator>
#include <sstream>
#include <iomanip>
using namespace std;`

// PreludeHeaders lists the header names included by the prelude, for the
// service info endpoint.
var PreludeHeaders = []string{
	"iostream", "string", "vector", "algorithm", "cmath",
	"cstdlib", "climits", "ctime", "map", "set", "queue",
	"stack", "deque", "list", "bitset", "utility",
	"functional", "numeric", "iterator", "sstream", "iomanip",
}

// Prepare prepends the prelude to the user's code verbatim. No escaping or
// transformation of the user content happens here; the output is exactly
// Prelude + "\n\n" + code.
func Prepare(code string) string {
	return Prelude + "\n\n" + code
}

// HasMainFunction reports whether the code already defines a main function.
func HasMainFunction(code string) bool {
	return strings.Contains(code, "int main(")
}

// WrapMain wraps a bare snippet in a main function with an exception guard.
// Used only for snippets that do not define main themselves.
func WrapMain(code string) string {
	var b strings.Builder
	b.WriteString("int main() {\n")
	b.WriteString("    try {\n")
	b.WriteString(code)
	b.WriteString("\n    } catch (const exception& e) {\n")
	b.WriteString("        cerr << \"Error: \" << e.what() << endl;\n")
	b.WriteString("        return 1;\n")
	b.WriteString("    } catch (...) {\n")
	b.WriteString("        cerr << \"Unknown error occurred\" << endl;\n")
	b.WriteString("        return 1;\n")
	b.WriteString("    }\n")
	b.WriteString("    return 0;\n")
	b.WriteString("}\n")
	return b.String()
}

// CheckSize rejects code exceeding the configured size ceiling. It is cheap
// and side-effect free so it can run before any file I/O or toolchain work.
func CheckSize(code string, limits spec.ResourceLimits) error {
	maxBytes := limits.CodeSizeKB * 1024
	if int64(len(code)) > maxBytes {
		return appErr.Newf(appErr.CodeTooLarge,
			"Code size (%.1fKB) exceeds maximum allowed size (%dKB)",
			float64(len(code))/1024.0, limits.CodeSizeKB)
	}
	return nil
}
