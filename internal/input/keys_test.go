package input

import (
	"reflect"
	"testing"

	"github.com/relaydesk/fabric/internal/wire"
)

func TestValidTokenAcceptsReservedAndLetters(t *testing.T) {
	for _, k := range []string{"a", "9", "space", "return", ";", "`"} {
		if !ValidToken(k) {
			t.Errorf("ValidToken(%q) = false, want true", k)
		}
	}
}

func TestValidTokenRejectsUnknown(t *testing.T) {
	for _, k := range []string{"F1", "unknown", "AB", ""} {
		if ValidToken(k) {
			t.Errorf("ValidToken(%q) = true, want false", k)
		}
	}
}

func TestModifierPressOrder(t *testing.T) {
	mods := wire.Modifiers{Shift: true, Ctrl: true, Alt: true, Meta: true}
	got := modifierPressOrder(mods)
	want := []string{"shift", "control", "alt", "meta"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("modifierPressOrder = %v, want %v", got, want)
	}
}

func TestModifierReleaseOrderIsReversed(t *testing.T) {
	mods := wire.Modifiers{Shift: true, Ctrl: true, Alt: true, Meta: true}
	got := modifierReleaseOrder(mods)
	want := []string{"meta", "alt", "control", "shift"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("modifierReleaseOrder = %v, want %v", got, want)
	}
}

type fakeKeyer struct {
	translated map[string]string
	events     []string
}

func (f *fakeKeyer) translate(token string) (string, bool) {
	if f.translated == nil {
		return token, true
	}
	n, ok := f.translated[token]
	return n, ok
}

func (f *fakeKeyer) pressNative(native string) error {
	f.events = append(f.events, "press:"+native)
	return nil
}

func (f *fakeKeyer) releaseNative(native string) error {
	f.events = append(f.events, "release:"+native)
	return nil
}

func TestApplyKeyEventPressOrdering(t *testing.T) {
	fk := &fakeKeyer{}
	mods := wire.Modifiers{Shift: true, Alt: true}
	if err := applyKeyEvent(fk, "a", true, mods); err != nil {
		t.Fatalf("applyKeyEvent: %v", err)
	}
	want := []string{"press:shift", "press:alt", "press:a"}
	if !reflect.DeepEqual(fk.events, want) {
		t.Fatalf("events = %v, want %v", fk.events, want)
	}
}

func TestApplyKeyEventReleaseOrdering(t *testing.T) {
	fk := &fakeKeyer{}
	mods := wire.Modifiers{Shift: true, Alt: true}
	if err := applyKeyEvent(fk, "a", false, mods); err != nil {
		t.Fatalf("applyKeyEvent: %v", err)
	}
	want := []string{"release:a", "release:alt", "release:shift"}
	if !reflect.DeepEqual(fk.events, want) {
		t.Fatalf("events = %v, want %v", fk.events, want)
	}
}

func TestApplyKeyEventUnknownKey(t *testing.T) {
	fk := &fakeKeyer{}
	err := applyKeyEvent(fk, "F13", true, wire.Modifiers{})
	if err != ErrUnknownKey {
		t.Fatalf("err = %v, want ErrUnknownKey", err)
	}
}
