package featureflags

import "testing"

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	if !m.Enabled("a", 1) || !m.Enabled("c", 1) || !m.Enabled("e", 1) {
		t.Fatal("expected enabled boolean values to evaluate true")
	}
	if m.Enabled("b", 1) || m.Enabled("d", 1) || m.Enabled("f", 1) {
		t.Fatal("expected disabled boolean values to evaluate false")
	}
	if m.Enabled("missing", 1) {
		t.Fatal("unknown flags must be disabled")
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,over=150%")

	if !m.Enabled("always", 1) || !m.Enabled("over", 1) {
		t.Fatal("rollouts of 100% or more should always be enabled")
	}
	if m.Enabled("never", 1) {
		t.Fatal("0% rollout should always be disabled")
	}

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		if got := m.Enabled("canary", 42); got != first {
			t.Fatal("rollout evaluation must be deterministic per user")
		}
	}

	if m.Enabled("canary", 0) {
		t.Fatal("percentage rollout requires non-zero userID")
	}

	enabled := 0
	for uid := uint(1); uid <= 1000; uid++ {
		if m.Enabled("canary", uid) {
			enabled++
		}
	}
	if enabled < 150 || enabled > 350 {
		t.Fatalf("25%% rollout enabled %d of 1000 users", enabled)
	}
}

func TestDefaultsAndOverrides(t *testing.T) {
	m := NewManager("")
	if !m.Enabled(ImageUploads, 1) || !m.Enabled(RealtimeStream, 1) {
		t.Fatal("known flags should default to on")
	}

	m = NewManager("IMAGE_UPLOADS=off")
	if m.Enabled(ImageUploads, 1) {
		t.Fatal("explicit value must override the default")
	}
	if !m.Enabled(RealtimeStream, 1) {
		t.Fatal("unrelated defaults must survive")
	}
}

func TestParseSkipsMalformedPairs(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off,w=maybe,v=abc% ")

	rules := map[string]string{}
	for _, st := range m.States(123) {
		rules[st.Name] = st.Rule
	}
	if len(rules) != 3+len(Defaults) {
		t.Fatalf("expected %d parsed flags, got %d: %#v", 3+len(Defaults), len(rules), rules)
	}
	if rules["x"] != "on" || rules["y"] != "20%" || rules["z"] != "off" {
		t.Fatalf("unexpected rules: %#v", rules)
	}
	for _, dropped := range []string{"w", "v", "bad"} {
		if _, ok := rules[dropped]; ok {
			t.Fatalf("unparseable flag %q must be dropped", dropped)
		}
	}

	names := m.Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}

func TestStates(t *testing.T) {
	var nilManager *Manager
	if got := nilManager.States(1); len(got) != 0 {
		t.Fatalf("nil manager should report no flags, got %v", got)
	}

	states := NewManager("image_uploads=off,beta=100%").States(0)
	want := []State{
		{Name: "beta", Rule: "100%", Enabled: true},
		{Name: ImageUploads, Rule: "off", Enabled: false},
		{Name: RealtimeStream, Rule: "on", Enabled: true},
	}
	if len(states) != len(want) {
		t.Fatalf("expected %d states, got %v", len(want), states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("state %d: want %+v, got %+v", i, want[i], states[i])
		}
	}
}
