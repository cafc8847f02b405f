package audit

import (
	"os"
	"path/filepath"
	"testing"
)

func FuzzVerify(f *testing.F) {
	validLog := filepath.Join(f.TempDir(), "valid.jsonl")
	al, err := Open(validLog)
	if err != nil {
		f.Fatal(err)
	}
	for _, outcome := range []string{OutcomeAllow, OutcomeDenied, "pin_authority"} {
		_ = al.Record(Entry{RunID: "r-fuzz", Outcome: outcome, Facts: 1})
	}
	al.Close()
	validData, _ := os.ReadFile(validLog)
	f.Add(validData)

	f.Add([]byte{})
	f.Add([]byte(`{"not":"a valid entry"}` + "\n"))
	f.Add([]byte(`not json`))

	f.Fuzz(func(t *testing.T, data []byte) {
		tmpFile := filepath.Join(t.TempDir(), "fuzz.jsonl")
		if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
			t.Fatal(err)
		}
		// Must not panic.
		Verify(tmpFile)
	})
}
