package session

import "testing"

func TestCreateSessionNoExisting(t *testing.T) {
	m := New(nil)
	s := m.CreateSession("chat_agent", "u1", 2)
	if s == nil || s.State != Running {
		t.Fatalf("expected new running session, got %+v", s)
	}
	stack := m.GetSessionStack("u1")
	if len(stack) != 1 || stack[0].SessionID != s.SessionID {
		t.Fatalf("new session must be at top of stack")
	}
}

func TestPriorityTieReturnsNil(t *testing.T) {
	m := New(nil)
	m.CreateSession("music_agent", "u1", 2)
	s2 := m.CreateSession("weather_agent", "u1", 2)
	if s2 != nil {
		t.Fatalf("equal priority must refuse creation, got %+v", s2)
	}
}

func TestHigherPriorityPausesCurrent(t *testing.T) {
	m := New(nil)
	a := m.CreateSession("music_agent", "u1", 2)
	b := m.CreateSession("vehicle_control_agent", "u1", 3)
	if b == nil {
		t.Fatalf("higher priority must be allowed to preempt")
	}
	got, _ := m.GetSession(a.SessionID)
	if got.State != Paused {
		t.Fatalf("current session must be paused, got %v", got.State)
	}
	active := m.GetActiveSession("u1")
	if active == nil || active.SessionID != b.SessionID {
		t.Fatalf("active session must be the new one")
	}
}

func TestPriorityThreeNeverPaused(t *testing.T) {
	m := New(nil)
	a := m.CreateSession("vehicle_control_agent", "u1", 3)
	b := m.CreateSession("anything_agent", "u1", 3)
	if b != nil {
		t.Fatalf("priority 3 must refuse any preemption, got %+v", b)
	}
	got, _ := m.GetSession(a.SessionID)
	if got.State == Paused {
		t.Fatalf("priority 3 session must never be paused")
	}
}

func TestCompleteThenAutoResume(t *testing.T) {
	m := New(nil)
	a := m.CreateSession("music_agent", "u1", 2)
	b := m.CreateSession("vehicle_control_agent", "u1", 3)

	if err := m.CompleteSession(b.SessionID, "u1"); err != nil {
		t.Fatalf("complete_session: %v", err)
	}
	got, _ := m.GetSession(a.SessionID)
	if got.State != Running {
		t.Fatalf("expected auto-resume to running, got %v", got.State)
	}
	active := m.GetActiveSession("u1")
	if active == nil || active.SessionID != a.SessionID {
		t.Fatalf("active session must be the resumed one")
	}
}

func TestCompleteSessionIdempotent(t *testing.T) {
	m := New(nil)
	a := m.CreateSession("chat_agent", "u1", 1)
	if err := m.CompleteSession(a.SessionID, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := m.CompleteSession(a.SessionID, "u1"); err != nil {
		t.Fatalf("second complete_session must be a no-op, not an error: %v", err)
	}
}

func TestWaitForInputThenResume(t *testing.T) {
	m := New(nil)
	a := m.CreateSession("workflow_agent", "u1", 2)
	if err := m.WaitForInput(a.SessionID, "哪个城市？", "text"); err != nil {
		t.Fatal(err)
	}
	got, _ := m.GetSession(a.SessionID)
	if got.State != WaitingInput || got.PendingPrompt == "" {
		t.Fatalf("expected waiting_input with prompt, got %+v", got)
	}
	if err := m.ResumeSession(a.SessionID, "北京"); err != nil {
		t.Fatal(err)
	}
	got, _ = m.GetSession(a.SessionID)
	if got.State != Running || got.Context["last_user_input"] != "北京" {
		t.Fatalf("expected resumed running session with recorded input, got %+v", got)
	}
}

func TestGetActiveSessionLazilyPopsTerminal(t *testing.T) {
	m := New(nil)
	a := m.CreateSession("chat_agent", "u1", 1)
	m.CompleteSession(a.SessionID, "u1")
	if m.GetActiveSession("u1") != nil {
		t.Fatalf("no non-terminal session should remain")
	}
}
