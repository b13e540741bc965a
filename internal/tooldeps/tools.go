// Package tooldeps pins the static-analysis passes our lint targets
// run so that go.mod keeps tracking them.
package tooldeps

import (
	_ "github.com/kisielk/errcheck/errcheck"
	_ "github.com/timakin/bodyclose/passes/bodyclose"
	_ "golang.org/x/tools/go/analysis/passes/nilness"
	_ "golang.org/x/tools/go/analysis/passes/unusedwrite"
)
