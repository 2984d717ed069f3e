package manifest

import (
	"testing"

	"github.com/syslua/syslua/pkg/action"
	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/engineerr"
)

const testPlatform = constants.Platform("amd64-linux")

func TestRegisterBuildIdenticalDefinitionIsIdempotent(t *testing.T) {
	m := New()
	b := Build{CreateActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")}}

	h1, err := m.RegisterBuild(b, testPlatform, false)
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	h2, err := m.RegisterBuild(b, testPlatform, false)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if h1 != h2 {
		t.Errorf("identical build registered under different hashes: %s vs %s", h1, h2)
	}
	if len(m.Builds) != 1 {
		t.Errorf("expected one build entry, got %d", len(m.Builds))
	}
}

func TestRegisterBuildSameIDDifferentHashWithoutReplaceConflicts(t *testing.T) {
	m := New()
	first := Build{
		ID:            "toolchain",
		CreateActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
		Source:        engineerr.SourceLocation{File: "a.lua", Line: 1},
	}
	second := Build{
		ID:            "toolchain",
		CreateActions: []action.Action{action.NewExec("/bin/false", nil, nil, "")},
		Source:        engineerr.SourceLocation{File: "b.lua", Line: 2},
	}

	if _, err := m.RegisterBuild(first, testPlatform, false); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := m.RegisterBuild(second, testPlatform, false)
	if err == nil {
		t.Fatal("expected collision error for same id, different hash, replace=false")
	}
	ve, ok := err.(*engineerr.ValidationError)
	if !ok {
		t.Fatalf("expected *engineerr.ValidationError, got %T", err)
	}
	if len(ve.Sources) != 2 {
		t.Errorf("expected both source locations cited, got %v", ve.Sources)
	}
}

func TestRegisterBuildSameIDDifferentHashWithReplaceSwaps(t *testing.T) {
	m := New()
	first := Build{ID: "toolchain", CreateActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")}}
	second := Build{ID: "toolchain", CreateActions: []action.Action{action.NewExec("/bin/false", nil, nil, "")}}

	h1, err := m.RegisterBuild(first, testPlatform, false)
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	h2, err := m.RegisterBuild(second, testPlatform, true)
	if err != nil {
		t.Fatalf("replace register: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected different hashes for different definitions")
	}
	if _, stillPresent := m.Builds[h1]; stillPresent {
		t.Error("old build entry should have been removed on replace")
	}
	if _, present := m.Builds[h2]; !present {
		t.Error("new build entry should be present after replace")
	}
	if len(m.Builds) != 1 {
		t.Errorf("expected exactly one build entry after replace, got %d", len(m.Builds))
	}
}

func TestRegisterBindUpdateActionsRequireID(t *testing.T) {
	m := New()
	b := Bind{
		CreateActions:  []action.Action{action.NewExec("/bin/true", nil, nil, "")},
		UpdateActions:  []action.Action{action.NewExec("/bin/true", nil, nil, "")},
		DestroyActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}
	if _, err := m.RegisterBind(b, testPlatform, false); err == nil {
		t.Fatal("expected error: update_actions without id")
	}
}

func TestRegisterBindIdenticalDefinitionIsIdempotent(t *testing.T) {
	m := New()
	b := Bind{
		ID:             "line-in-file",
		CreateActions:  []action.Action{action.NewExec("/bin/true", nil, nil, "")},
		DestroyActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}
	h1, err := m.RegisterBind(b, testPlatform, false)
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	h2, err := m.RegisterBind(b, testPlatform, false)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if h1 != h2 {
		t.Errorf("identical bind registered under different hashes")
	}
}

func TestValidateDetectsDanglingBuildReference(t *testing.T) {
	m := New()
	b := Bind{
		ID:             "needs-missing",
		CreateActions:  []action.Action{action.NewExec("$${build:deadbeefdeadbeefdead:bin}", nil, nil, "")},
		DestroyActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}
	if _, err := m.RegisterBind(b, testPlatform, false); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Validate(); err == nil {
		t.Fatal("expected dangling reference to be reported by Validate")
	}
}

func TestValidatePassesWhenReferenceResolves(t *testing.T) {
	m := New()
	build := Build{CreateActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")}}
	buildHash, err := m.RegisterBuild(build, testPlatform, false)
	if err != nil {
		t.Fatalf("register build: %v", err)
	}
	bind := Bind{
		ID:             "consumer",
		CreateActions:  []action.Action{action.NewExec("$${build:" + string(buildHash) + ":bin}", nil, nil, "")},
		DestroyActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}
	if _, err := m.RegisterBind(bind, testPlatform, false); err != nil {
		t.Fatalf("register bind: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestSummaryReportsCounts(t *testing.T) {
	m := New()
	if _, err := m.RegisterBuild(Build{CreateActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")}}, testPlatform, false); err != nil {
		t.Fatalf("register build: %v", err)
	}
	s := m.Summary()
	if s.BuildCount != 1 || s.BindCount != 0 {
		t.Errorf("Summary() = %+v, want BuildCount=1, BindCount=0", s)
	}
}
