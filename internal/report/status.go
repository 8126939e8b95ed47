// SPDX-License-Identifier: MPL-2.0

package report

import (
	"fmt"
	"io"

	"github.com/questsystem/packdeploy/internal/pipeline"
)

// WriteStatus renders pack identities, the dependency binding and the server
// state line.
func WriteStatus(w io.Writer, st *pipeline.Status, server string) {
	t := NewTable("Pack", "Version", "UUID", "Modules")
	for _, p := range []pipeline.PackStatus{st.Behavior, st.Resource} {
		t.AddRow(p.Name, p.Version.String(), p.UUID, fmt.Sprint(p.Modules))
	}
	t.Render(w)

	fmt.Fprintln(w)
	binding := "broken (" + st.Binding + ")"
	if st.Bound {
		binding = "ok (" + st.Binding + ")"
	}
	KeyValues(w, [][2]string{
		{"Dependency", binding},
		{"Server", server},
	})
}
