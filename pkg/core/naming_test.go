package core

import "testing"

type sampleWorker struct{}

func TestNameOfUsesPackagePathAndTypeName(t *testing.T) {
	name := NameOf(sampleWorker{})
	const want = "github.com/fluxorio/procmesh/pkg/core.sampleWorker"
	if name != want {
		t.Errorf("NameOf(sampleWorker{}) = %q, want %q", name, want)
	}
}

func TestNameOfDereferencesPointers(t *testing.T) {
	valueName := NameOf(sampleWorker{})
	pointerName := NameOf(&sampleWorker{})
	if valueName != pointerName {
		t.Errorf("NameOf(&sampleWorker{}) = %q, want %q", pointerName, valueName)
	}
}
