package command

import "testing"

const commandTopic = "homesync/poc/node1/command/relay"

func TestInterpret(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantOK  bool
		want    bool
	}{
		{"explicit true", `{"state":true}`, true, true},
		{"explicit false", `{"state":false}`, true, false},
		{"explicit true with extra fields", `{"source":"app","state":true,"note":"false alarm"}`, true, true},
		{"explicit true wins over explicit false", `{"state":false,"state":true}`, true, true},
		{"explicit false wins over bare true", `{"state":false,"reason":"true"}`, true, false},
		{"bare true", "true", true, true},
		{"bare false", "false", true, false},
		{"bare true inside text", "set it true please", true, true},
		{"bare true before bare false", "false or true", true, true},
		{"spaced key falls back to bare token", `{"state": false}`, true, false},
		{"uppercase not recognised", "TRUE", false, false},
		{"numeric not recognised", `{"state":1}`, false, false},
		{"empty", "", false, false},
		{"garbage", "\xff\xfe{{{", false, false},
		{"partial json", `{"sta`, false, false},
		{"text after NUL ignored", "on\x00true", false, false},
		{"text before NUL used", "false\x00true", true, false},
	}

	i := NewInterpreter(commandTopic)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := i.Interpret(commandTopic, []byte(tt.payload))
			if ok != tt.wantOK {
				t.Fatalf("Interpret(%q) ok = %v, want %v", tt.payload, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if cmd.Action != ActionSetActuator {
				t.Errorf("Action = %v, want ActionSetActuator", cmd.Action)
			}
			if cmd.State != tt.want {
				t.Errorf("Interpret(%q) = %v, want SetActuator(%v)", tt.payload, cmd, tt.want)
			}
		})
	}
}

func TestInterpretIgnoresOtherTopics(t *testing.T) {
	i := NewInterpreter(commandTopic)

	for _, topic := range []string{
		"homesync/poc/node1/command/relay/",
		"homesync/poc/node2/command/relay",
		"homesync/poc/node1/command",
		"",
	} {
		if cmd, ok := i.Interpret(topic, []byte(`{"state":true}`)); ok {
			t.Errorf("Interpret(%q) = %v, want no command", topic, cmd)
		}
	}
}

func TestCommandString(t *testing.T) {
	if got := SetActuator(true).String(); got != "SetActuator(true)" {
		t.Errorf("String() = %q", got)
	}
	if got := (Command{}).String(); got != "Unknown" {
		t.Errorf("zero String() = %q", got)
	}
}
