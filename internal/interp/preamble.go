package interp

import (
	"fmt"
	"regexp"
	"strings"
)

// FigurePattern matches the filenames the preamble assigns to auto-saved
// figures: figure_ plus a random 8-hex-character suffix.
var FigurePattern = regexp.MustCompile(`^figure_[0-9a-f]{8}\.png$`)

// preambleHeader pins the executing interpreter to the workspace so that
// relative file writes land there. The chdir happens inside the child
// interpreter process only; the host process working directory is never
// touched.
const preambleHeader = `import os

_crucible_workspace = r"%s"
os.makedirs(_crucible_workspace, exist_ok=True)
os.chdir(_crucible_workspace)
`

// preambleMatplotlib forces the headless backend. Code that never imports
// matplotlib must keep working on hosts without it, hence the ImportError
// guard.
const preambleMatplotlib = `
try:
    import matplotlib
    matplotlib.use("Agg")
    import matplotlib.pyplot as plt
except ImportError:
    plt = None
`

// preambleAutoSave redirects plt.show() into saving the current figure to a
// uniquely named PNG and clearing figure state. The filename is echoed to
// stdout so the caller can pick it up from the captured output.
const preambleAutoSave = `
if plt is not None:
    def _crucible_show(*args, **kwargs):
        import uuid
        fig = plt.gcf()
        if fig.get_axes():
            filename = "figure_" + uuid.uuid4().hex[:8] + ".png"
            fig.savefig(filename, dpi=%d, bbox_inches="tight")
            print("Figure saved to: " + filename)
        plt.close("all")
    plt.show = _crucible_show
`

// buildPreamble assembles the setup code prepended to every execution.
func buildPreamble(workspace string, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, preambleHeader, workspace)
	b.WriteString(preambleMatplotlib)
	if opts.AutoSaveFigures {
		dpi := opts.FigureDPI
		if dpi <= 0 {
			dpi = defaultFigureDPI
		}
		fmt.Fprintf(&b, preambleAutoSave, dpi)
	}
	for _, line := range opts.ExtraPreamble {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
