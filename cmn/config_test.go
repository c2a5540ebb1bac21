package cmn

import "testing"

func TestGCODefaultsLoaded(t *testing.T) {
	cfg := GCO.Get()
	if cfg.NucleationDataThreshold <= 0 {
		t.Fatalf("NucleationDataThreshold = %v, want > 0", cfg.NucleationDataThreshold)
	}
}

func TestGCOBeginCommitUpdate(t *testing.T) {
	orig := GCO.Get()
	defer GCO.Put(orig)

	cfg := GCO.BeginUpdate()
	cfg.ProcessLimit = 999
	GCO.CommitUpdate(cfg)

	if got := GCO.Get().ProcessLimit; got != 999 {
		t.Fatalf("ProcessLimit after commit = %v, want 999", got)
	}
}

func TestLoadConfigJSONOverridesOnlyGivenFields(t *testing.T) {
	cfg, err := LoadConfigJSON([]byte(`{"ProcessLimit": 42}`))
	if err != nil {
		t.Fatalf("LoadConfigJSON: %v", err)
	}
	if cfg.ProcessLimit != 42 {
		t.Fatalf("ProcessLimit = %v, want 42", cfg.ProcessLimit)
	}
}
