package easel

import (
	"errors"
	"testing"
)

// flakySanityBackend draws correctly but always reports a failed
// sanity check, standing in for a broken driver.
type flakySanityBackend struct {
	softwareBackend
}

func (*flakySanityBackend) Name() string { return "flaky" }

func (b *flakySanityBackend) NewRasterizer(w, h int) (Rasterizer, error) {
	r, err := b.softwareBackend.NewRasterizer(w, h)
	if err != nil {
		return nil, err
	}
	return &flakyRasterizer{r}, nil
}

type flakyRasterizer struct {
	Rasterizer
}

func (*flakyRasterizer) CheckSanity() bool { return false }

func TestDefaultModes(t *testing.T) {
	got := DefaultModes()
	want := []string{"gpufloat", "gpufixed", "software"}
	if len(got) != len(want) {
		t.Fatalf("DefaultModes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DefaultModes[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegisteredBackends_IncludesSoftware(t *testing.T) {
	for _, name := range RegisteredBackends() {
		if name == BackendSoftware {
			return
		}
	}
	t.Errorf("RegisteredBackends() = %v, missing %q", RegisteredBackends(), BackendSoftware)
}

func TestOpenBackend_Unknown(t *testing.T) {
	_, err := openBackend("nonesuch", 8, 8)
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("openBackend(nonesuch) err = %v, want ErrBackendUnavailable", err)
	}
}

func TestNew_AllModesFail(t *testing.T) {
	p, err := New("pic", 8, 8, 1, []string{"nonesuch"}, -1)
	if p != nil {
		t.Fatal("New returned a picture with no usable backend")
	}
	if !errors.Is(err, ErrNoBackend) {
		t.Errorf("err = %v, want ErrNoBackend", err)
	}
}

func TestOpenBackend_SanityFailureFlagsKind(t *testing.T) {
	RegisterBackend("flaky", func() Backend { return &flakySanityBackend{} })
	ResetFailedBackends()
	t.Cleanup(ResetFailedBackends)

	if _, err := openBackend("flaky", 8, 8); !errors.Is(err, ErrSanityCheckFailed) {
		t.Fatalf("first open err = %v, want ErrSanityCheckFailed", err)
	}
	if !backendFailed("flaky") {
		t.Error("backend kind not flagged after sanity failure")
	}
	// The second attempt must short-circuit on the flag without
	// constructing the backend again.
	if _, err := openBackend("flaky", 8, 8); !errors.Is(err, ErrSanityCheckFailed) {
		t.Errorf("second open err = %v, want ErrSanityCheckFailed", err)
	}
}

func TestNew_FallsPastFailingMode(t *testing.T) {
	RegisterBackend("flaky", func() Backend { return &flakySanityBackend{} })
	ResetFailedBackends()
	t.Cleanup(ResetFailedBackends)

	p, err := New("pic", 8, 8, 1, []string{"flaky", BackendSoftware}, -1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(p.Free)
	if p.BackendName() != BackendSoftware {
		t.Errorf("BackendName = %q, want %q", p.BackendName(), BackendSoftware)
	}
}

func TestRunSanityCheck_Software(t *testing.T) {
	b := &softwareBackend{}
	if !RunSanityCheck(b) {
		t.Error("software backend failed its own sanity check")
	}
}
