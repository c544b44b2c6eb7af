package host

import (
	"testing"
)

func TestParseListSeparators(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		user      string
		wantAddrs string
		wantSpecs string
	}{
		{
			name:      "comma separated",
			input:     "a,b,c",
			user:      "deploy",
			wantAddrs: "a b c",
			wantSpecs: "deploy@a deploy@b deploy@c",
		},
		{
			name:      "mixed commas and whitespace",
			input:     "a,b , c",
			user:      "deploy",
			wantAddrs: "a b c",
			wantSpecs: "deploy@a deploy@b deploy@c",
		},
		{
			name:      "space separated",
			input:     "a b c",
			user:      "deploy",
			wantAddrs: "a b c",
			wantSpecs: "deploy@a deploy@b deploy@c",
		},
		{
			name:      "single host",
			input:     "web1.example.com",
			user:      "root",
			wantAddrs: "web1.example.com",
			wantSpecs: "root@web1.example.com",
		},
		{
			name:      "empty input",
			input:     "",
			user:      "deploy",
			wantAddrs: "",
			wantSpecs: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts, err := ParseList(tt.input, tt.user)
			if err != nil {
				t.Fatalf("ParseList(%q) error: %v", tt.input, err)
			}
			if got := Normalize(hosts); got != tt.wantAddrs {
				t.Errorf("Normalize = %q, want %q", got, tt.wantAddrs)
			}
			if got := Render(hosts); got != tt.wantSpecs {
				t.Errorf("Render = %q, want %q", got, tt.wantSpecs)
			}
		})
	}
}

func TestParseListKeepsDuplicates(t *testing.T) {
	hosts, err := ParseList("a,a,b", "deploy")
	if err != nil {
		t.Fatalf("ParseList error: %v", err)
	}
	if len(hosts) != 3 {
		t.Fatalf("got %d hosts, want 3 (duplicates must be kept)", len(hosts))
	}
	if hosts[0].Address != "a" || hosts[1].Address != "a" || hosts[2].Address != "b" {
		t.Errorf("hosts out of order: %v", hosts)
	}
}

func TestParseEntryForms(t *testing.T) {
	tests := []struct {
		entry    string
		wantUser string
		wantAddr string
		wantPort int
		wantErr  bool
	}{
		{entry: "web1", wantUser: "deploy", wantAddr: "web1", wantPort: 22},
		{entry: "admin@web1", wantUser: "admin", wantAddr: "web1", wantPort: 22},
		{entry: "web1:2222", wantUser: "deploy", wantAddr: "web1", wantPort: 2222},
		{entry: "admin@web1:2222", wantUser: "admin", wantAddr: "web1", wantPort: 2222},
		{entry: "@web1", wantErr: true},
		{entry: "web1:notaport", wantErr: true},
		{entry: "web1:70000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			hosts, err := ParseList(tt.entry, "deploy")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseList(%q) succeeded, want error", tt.entry)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseList(%q) error: %v", tt.entry, err)
			}
			h := hosts[0]
			if h.User != tt.wantUser || h.Address != tt.wantAddr || h.Port != tt.wantPort {
				t.Errorf("got %s@%s:%d, want %s@%s:%d",
					h.User, h.Address, h.Port, tt.wantUser, tt.wantAddr, tt.wantPort)
			}
		})
	}
}

func TestHostString(t *testing.T) {
	h := Host{Address: "web1", User: "deploy", Port: 22}
	if got := h.String(); got != "deploy@web1" {
		t.Errorf("String = %q, want deploy@web1", got)
	}
	if got := h.Addr(); got != "web1:22" {
		t.Errorf("Addr = %q, want web1:22", got)
	}

	anon := Host{Address: "web1"}
	if got := anon.String(); got != "web1" {
		t.Errorf("String without user = %q, want web1", got)
	}
}
