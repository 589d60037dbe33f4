package channels

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantOK   bool
		wantName string
		wantArgs string
	}{
		{"plain text", "hello there", false, "", ""},
		{"bare slash", "/", false, "", ""},
		{"simple", "/end", true, "end", ""},
		{"with arg", "/live @alice", true, "live", "@alice"},
		{"bot suffix", "/queue@LivelineBot", true, "queue", ""},
		{"bot suffix with args", "/live@LivelineBot @bob", true, "live", "@bob"},
		{"mixed case", "/Broadcast maintenance at 10", true, "broadcast", "maintenance at 10"},
		{"leading whitespace", "  /status", true, "status", ""},
		{"multiline args", "/reply add price\nsee the site", true, "reply", "add price\nsee the site"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := ParseCommand(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if cmd.Name != tt.wantName || cmd.Args != tt.wantArgs {
				t.Errorf("got (%q, %q), want (%q, %q)", cmd.Name, cmd.Args, tt.wantName, tt.wantArgs)
			}
		})
	}
}

func TestCommandArgHelpers(t *testing.T) {
	cmd, _ := ParseCommand("/autoreply add price See our pricing page")
	if cmd.Arg(0) != "add" || cmd.Arg(1) != "price" {
		t.Errorf("Arg = %q, %q", cmd.Arg(0), cmd.Arg(1))
	}
	if got := cmd.Rest(2); got != "See our pricing page" {
		t.Errorf("Rest(2) = %q", got)
	}
	if cmd.Arg(10) != "" || cmd.Rest(10) != "" {
		t.Error("out-of-range access must return empty")
	}
}
