package catalog

import (
	"testing"
	"time"
)

func TestAddGroup_DuplicateNameCaseInsensitive(t *testing.T) {
	c := New()

	if _, err := c.AddGroup(Group{Name: "OTP", Channel: ChannelMailing}); err != nil {
		t.Fatalf("AddGroup() error = %v", err)
	}
	if _, err := c.AddGroup(Group{Name: "otp", Channel: ChannelMailing}); err == nil {
		t.Error("AddGroup() should fail for duplicate (channel, name)")
	}

	// Same name on another channel is a different group.
	if _, err := c.AddGroup(Group{Name: "otp", Channel: ChannelNotifications}); err != nil {
		t.Errorf("AddGroup() error = %v, want nil for different channel", err)
	}
}

func TestAddGroup_UnknownChannel(t *testing.T) {
	c := New()
	if _, err := c.AddGroup(Group{Name: "Alerts", Channel: "sms"}); err == nil {
		t.Error("AddGroup() should fail for an unknown channel")
	}
}

func TestAddDefinition(t *testing.T) {
	c := New()
	g, err := c.AddGroup(Group{ID: "g1", Name: "Alerts", Channel: ChannelMailing})
	if err != nil {
		t.Fatalf("AddGroup() error = %v", err)
	}

	def, err := c.AddDefinition(Definition{ID: "t1", GroupID: g.ID, Name: "Welcome"})
	if err != nil {
		t.Fatalf("AddDefinition() error = %v", err)
	}
	if def.ChannelGroup != ChannelMailing {
		t.Errorf("ChannelGroup = %q, want %q", def.ChannelGroup, ChannelMailing)
	}
	if def.Key != "t1" {
		t.Errorf("Key = %q, want id fallback", def.Key)
	}

	if _, err := c.AddDefinition(Definition{ID: "t1", GroupID: g.ID, Name: "Other"}); err == nil {
		t.Error("AddDefinition() should fail for duplicate id")
	}
	if _, err := c.AddDefinition(Definition{ID: "t2", GroupID: "missing", Name: "Orphan"}); err == nil {
		t.Error("AddDefinition() should fail for unknown group")
	}
}

func TestFindDefinition_ReturnsCopy(t *testing.T) {
	c := Builtin()

	def, ok := c.FindDefinition("otp-login-code")
	if !ok {
		t.Fatal("FindDefinition() did not find builtin template")
	}
	def.Body["en"] = "mutated"

	again, _ := c.FindDefinition("otp-login-code")
	if again.Body["en"] == "mutated" {
		t.Error("FindDefinition() must return a copy, registry was mutated")
	}
}

func TestDefaultActiveMap(t *testing.T) {
	c := New()
	c.AddGroup(Group{ID: "g1", Name: "Alerts", Channel: ChannelMailing})
	c.AddDefinition(Definition{ID: "a", GroupID: "g1", Name: "A", Status: StatusInactive})
	c.AddDefinition(Definition{ID: "b", GroupID: "g1", Name: "B", Status: StatusActive})
	c.AddDefinition(Definition{ID: "c", GroupID: "g1", Name: "C", Status: StatusActive})

	defaults := c.DefaultActiveMap()
	if defaults["g1"] != "b" {
		t.Errorf("DefaultActiveMap()[g1] = %q, want first active definition %q", defaults["g1"], "b")
	}
}

func TestWithOverride_PreservesLocales(t *testing.T) {
	def := Definition{
		ID:   "t1",
		Name: "Welcome",
		Body: map[string]string{"en": "Hello", "es": "Hola"},
	}

	merged := def.WithOverride(map[string]string{"es": "Buenas"}, "", "", "", time.Time{})

	if merged.Body["es"] != "Buenas" {
		t.Errorf("Body[es] = %q, want override applied", merged.Body["es"])
	}
	if merged.Body["en"] != "Hello" {
		t.Errorf("Body[en] = %q, want original locale preserved", merged.Body["en"])
	}
	if def.Body["es"] != "Hola" {
		t.Error("WithOverride() must not mutate the receiver")
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Recordatorio Cash-in", "recordatorio-cash-in"},
		{"  Codigo   OTP  ", "codigo-otp"},
		{"Alerta #1 (nueva)", "alerta-1-nueva"},
		{"Simple", "simple"},
	}

	for _, tt := range tests {
		if got := Slug(tt.name); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestMergeBody(t *testing.T) {
	c := New()
	c.AddGroup(Group{ID: "g1", Name: "Alerts", Channel: ChannelMailing})
	c.AddDefinition(Definition{ID: "t1", GroupID: "g1", Name: "A", Body: map[string]string{"en": "old"}})

	if !c.MergeBody("t1", map[string]string{"es": "nuevo"}) {
		t.Fatal("MergeBody() = false for known template")
	}

	def, _ := c.FindDefinition("t1")
	if def.Body["en"] != "old" || def.Body["es"] != "nuevo" {
		t.Errorf("Body = %v, want both locales", def.Body)
	}
}
