package domain

import "testing"

func TestValidAction(t *testing.T) {
	valid := []Action{ActionStart, ActionStop, ActionRestart, ActionStatus,
		ActionFormat, ActionChangePassword, ActionReinstall}
	for _, a := range valid {
		if !ValidAction(a) {
			t.Errorf("ValidAction(%q) = false, want true", a)
		}
	}
	for _, a := range []Action{"", "delete", "START", "re-install"} {
		if ValidAction(a) {
			t.Errorf("ValidAction(%q) = true, want false", a)
		}
	}
}

func TestActionDestructive(t *testing.T) {
	destructive := map[Action]bool{
		ActionStart:          false,
		ActionStop:           false,
		ActionRestart:        false,
		ActionStatus:         false,
		ActionFormat:         true,
		ActionChangePassword: true,
		ActionReinstall:      true,
	}
	for a, want := range destructive {
		if got := a.Destructive(); got != want {
			t.Errorf("%q.Destructive() = %v, want %v", a, got, want)
		}
	}
}
