package session

import "testing"

func TestSetCurrentTimeClampsNegative(t *testing.T) {
	s := New("en")
	s.SetCurrentTime(-10)
	if got := s.CurrentTime(); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestAdvanceWrapsAndStops(t *testing.T) {
	s := New("en")
	s.SetPlaying(true)
	s.SetCurrentTime(90)

	if wrapped := s.Advance(5, 100); wrapped {
		t.Fatal("did not expect wrap at 95")
	}
	if got := s.CurrentTime(); got != 95 {
		t.Errorf("expected 95, got %v", got)
	}

	if wrapped := s.Advance(5, 100); !wrapped {
		t.Fatal("expected wrap at 100")
	}
	snap := s.Snapshot()
	if snap.CurrentTime != 0 || snap.Playing {
		t.Errorf("expected reset and stopped, got %+v", snap)
	}
}

func TestSubscribeOnlyOnChange(t *testing.T) {
	s := New("en")
	var got []Snapshot
	s.Subscribe(func(snap Snapshot) { got = append(got, snap) })

	s.SetLanguage("en")
	s.SetLanguage("fr")
	s.SetPlaying(false)
	s.SetPlaying(true)
	s.SetCurrentTime(0)
	s.SetCurrentTime(12)

	if len(got) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(got))
	}
	last := got[len(got)-1]
	if last.Language != "fr" || !last.Playing || last.CurrentTime != 12 {
		t.Errorf("unexpected final snapshot %+v", last)
	}
}
