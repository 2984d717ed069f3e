package placeholder

import (
	"fmt"
	"strings"
	"testing"

	"github.com/syslua/syslua/pkg/constants"
)

type fakeResolver struct {
	out          string
	buildOutputs map[string]string // "hash:name" -> value
	bindOutputs  map[string]string
	actionStdout map[int]string
	outErr       error
}

func (f *fakeResolver) OutDir() (string, error) {
	if f.outErr != nil {
		return "", f.outErr
	}
	return f.out, nil
}

func (f *fakeResolver) BuildOutput(hash constants.ObjectHash, name string) (string, error) {
	key := string(hash) + ":" + name
	v, ok := f.buildOutputs[key]
	if !ok {
		return "", fmt.Errorf("no such build output %s", key)
	}
	return v, nil
}

func (f *fakeResolver) BindOutput(hash constants.ObjectHash, name string) (string, error) {
	key := string(hash) + ":" + name
	v, ok := f.bindOutputs[key]
	if !ok {
		return "", fmt.Errorf("no such bind output %s", key)
	}
	return v, nil
}

func (f *fakeResolver) ActionResult(index int) (string, error) {
	v, ok := f.actionStdout[index]
	if !ok {
		return "", fmt.Errorf("no result for action %d", index)
	}
	return v, nil
}

func TestResolveOut(t *testing.T) {
	r := &fakeResolver{out: "/store/build/abc"}
	got, err := Resolve("$${out}/bin/tool", "owner0000000000000001", r)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "/store/build/abc/bin/tool" {
		t.Errorf("got %q", got)
	}
}

func TestResolveBuildAndBind(t *testing.T) {
	r := &fakeResolver{
		buildOutputs: map[string]string{"aaaa:bin": "/store/build/aaaa/bin"},
		bindOutputs:  map[string]string{"bbbb:path": "/etc/tool.conf"},
	}
	got, err := Resolve("$${build:aaaa:bin} then $${bind:bbbb:path}", "owner0000000000000001", r)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "/store/build/aaaa/bin then /etc/tool.conf"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveActionResult(t *testing.T) {
	r := &fakeResolver{actionStdout: map[int]string{0: "v1.2.3"}}
	got, err := Resolve("version=$${action:0}", "owner0000000000000001", r)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "version=v1.2.3" {
		t.Errorf("got %q", got)
	}
}

func TestResolveRecursiveFixedPoint(t *testing.T) {
	r := &fakeResolver{
		out:          "$${build:aaaa:bin}",
		buildOutputs: map[string]string{"aaaa:bin": "/store/build/aaaa/bin"},
	}
	got, err := Resolve("$${out}", "owner0000000000000001", r)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "/store/build/aaaa/bin" {
		t.Errorf("got %q, want resolved nested placeholder", got)
	}
}

func TestResolveUnresolvableIsHardError(t *testing.T) {
	r := &fakeResolver{}
	_, err := Resolve("$${build:missing:bin}", "owner0000000000000001", r)
	if err == nil {
		t.Fatal("expected error for unresolvable placeholder")
	}
}

func TestResolveNoPlaceholdersPassesThrough(t *testing.T) {
	r := &fakeResolver{}
	got, err := Resolve("plain string, no tokens", "owner0000000000000001", r)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "plain string, no tokens" {
		t.Errorf("got %q", got)
	}
}

func TestResolveCycleIsHardError(t *testing.T) {
	r := &fakeResolver{out: "$${out}"}
	_, err := Resolve("$${out}", "owner0000000000000001", r)
	if err == nil {
		t.Fatal("expected cycle to be a hard error")
	}
}

func TestReferencesExtractsBuildAndBindHashes(t *testing.T) {
	s := "$${build:aaaa:bin} and $${bind:bbbb:path} and $${out} and $${action:0}"
	refs := References(s)
	if len(refs) != 2 {
		t.Fatalf("References() = %v, want 2 entries", refs)
	}
	joined := fmt.Sprintf("%v", refs)
	if !strings.Contains(joined, "aaaa") || !strings.Contains(joined, "bbbb") {
		t.Errorf("References() = %v, missing expected hashes", refs)
	}
}

func TestReferencesEmptyWhenNoCrossEntityTokens(t *testing.T) {
	refs := References("$${out}/bin and $${action:0}")
	if len(refs) != 0 {
		t.Errorf("References() = %v, want none", refs)
	}
}
