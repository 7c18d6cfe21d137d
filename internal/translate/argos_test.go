package translate

import (
	"errors"
	"testing"
)

func TestTranslateBeforeSetup(t *testing.T) {
	a := NewArgos("en", "zh")

	if a.Ready() {
		t.Error("Ready() = true before Setup")
	}

	_, err := a.Translate("hello")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Translate() error = %v, want ErrUnavailable", err)
	}
}
