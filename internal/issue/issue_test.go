// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestValues_OrderedAndComplete(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != int(HostNotSupportedId) {
		t.Fatalf("Values() has %d issues, want %d", len(values), HostNotSupportedId)
	}
	for i, iss := range values {
		if iss.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, iss.Id(), i+1)
		}
		if strings.TrimSpace(string(iss.MarkdownMsg())) == "" {
			t.Errorf("issue %d has no message", iss.Id())
		}
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	if Get(ValidationFailedId) == nil {
		t.Error("Get(ValidationFailedId) = nil")
	}
	if Get(Id(0)) != nil || Get(Id(999)) != nil {
		t.Error("Get() of an unknown id should be nil")
	}
}

func TestIssue_Render(t *testing.T) {
	t.Parallel()

	for _, iss := range Values() {
		out, err := iss.Render("notty")
		if err != nil {
			t.Errorf("issue %d: Render() error: %v", iss.Id(), err)
			continue
		}
		if strings.TrimSpace(out) == "" {
			t.Errorf("issue %d rendered empty", iss.Id())
		}
	}
}

func TestIssue_RenderWithLinks(t *testing.T) {
	t.Parallel()

	iss := &Issue{
		id:       PackNotFoundId,
		mdMsg:    "# Missing",
		docLinks: []HttpLink{"https://example.com/docs"},
		extLinks: []HttpLink{"https://example.com/ext"},
	}
	out, err := iss.Render("notty")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"See also", "https://example.com/docs", "https://example.com/ext"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}

	links := iss.DocLinks()
	links[0] = "changed"
	if iss.DocLinks()[0] == "changed" {
		t.Error("DocLinks() must return a copy")
	}
}
