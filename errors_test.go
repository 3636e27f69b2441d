package tessera

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	wrapped := fmt.Errorf("loading: %w", newDataError(cause, "can't read %s", "x.json"))
	if !IsDataError(wrapped) {
		t.Error("Wrapped DataError not detected")
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Error("Cause of DataError not reachable with errors.Is")
	}
	if IsConfigError(wrapped) {
		t.Error("DataError detected as ConfigError")
	}
	var confErr *ConfigError
	if !errors.As(fmt.Errorf("x: %w", &ConfigError{Field: "f", Msg: "m"}), &confErr) || confErr.Field != "f" {
		t.Error("ConfigError not found with errors.As")
	}
}

func TestWarningsConcurrent(t *testing.T) {
	warnings := &Warnings{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := MissingResource
			if i%2 == 0 {
				kind = Fidelity
			}
			warnings.Add(kind, fmt.Sprintf("res%d", i), "warning %d", i)
		}(i)
	}
	wg.Wait()
	if warnings.Len() != 10 || warnings.Count(Fidelity) != 5 || warnings.Count(MissingResource) != 5 {
		t.Errorf("Unexpected warnings %v", warnings.List())
	}
	var nilWarnings *Warnings
	nilWarnings.Add(Fidelity, "x", "only logged")
	if nilWarnings.Len() != 0 || nilWarnings.List() != nil {
		t.Error("nil Warnings must not record anything")
	}
	if MissingResource.String() != "MissingResourceWarning" || Fidelity.String() != "FidelityWarning" {
		t.Error("Unexpected warning kind names")
	}
}
