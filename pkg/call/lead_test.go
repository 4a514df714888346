package call

import "testing"

func TestExtractorName(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"my name is", "Hi, my name is john smith", "John Smith"},
		{"this is", "Hello, this is Maria Lopez calling", "Maria Lopez"},
		{"i am", "i am Pierre", "Pierre"},
		{"contraction", "Hey, I'm O'Brien", "O'brien"},
		{"no introduction", "I need to book an appointment", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := NewExtractor(false, "+1")
			x.Apply(tt.text)
			if got := x.Lead().FullName; got != tt.want {
				t.Errorf("FullName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractorFirstNameWins(t *testing.T) {
	x := NewExtractor(false, "+1")
	x.Apply("my name is Alice")
	x.Apply("my name is Bob")
	if got := x.Lead().FullName; got != "Alice" {
		t.Errorf("FullName = %q, want first capture to win", got)
	}
}

func TestExtractorSubject(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		capture bool
	}{
		{"long enough", "I need someone to look at my boiler", true},
		{"short intent whitelisted", "call me back", true},
		{"short intent variant", "please give me a callback", true},
		{"too short", "yes", false},
		{"greeting with name only", "hi, my name is John Smith", false},
		{"bare number", "415 555 0123", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := NewExtractor(true, "+1")
			x.Apply(tt.text)
			got := x.Lead().Subject != ""
			if got != tt.capture {
				t.Errorf("subject captured = %v, want %v (subject %q)", got, tt.capture, x.Lead().Subject)
			}
		})
	}
}

func TestExtractorCallbackNumber(t *testing.T) {
	t.Run("captured when caller withheld", func(t *testing.T) {
		x := NewExtractor(true, "+1")
		x.Apply("you can reach me at 415-555-0123")
		if got := x.Lead().CallbackToNumber; got != "+14155550123" {
			t.Errorf("CallbackToNumber = %q, want +14155550123", got)
		}
	})

	t.Run("ignored when caller id known", func(t *testing.T) {
		x := NewExtractor(false, "+1")
		x.Apply("you can reach me at 415-555-0123")
		if got := x.Lead().CallbackToNumber; got != "" {
			t.Errorf("CallbackToNumber = %q, want empty (caller id wins)", got)
		}
	})

	t.Run("short digit runs ignored", func(t *testing.T) {
		x := NewExtractor(true, "+1")
		x.Apply("my apartment is number 4155")
		if got := x.Lead().CallbackToNumber; got != "" {
			t.Errorf("CallbackToNumber = %q, want empty", got)
		}
	})
}

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare local ten digits", "4155550123", "+14155550123"},
		{"formatted local", "(415) 555-0123", "+14155550123"},
		{"national with country digit", "14155550123", "+14155550123"},
		{"already international", "+44 20 7946 0958", "+442079460958"},
		{"too short", "55501", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeNumber(tt.raw, "+1"); got != tt.want {
				t.Errorf("NormalizeNumber(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDecide(t *testing.T) {
	complete := func() *LeadRecord {
		return &LeadRecord{
			FullName:         "John Smith",
			Subject:          "call me back",
			CallbackToNumber: "+14155550123",
		}
	}

	tests := []struct {
		name       string
		mutate     func(*LeadRecord)
		caller     string
		withheld   bool
		want       Decision
		wantReason DecisionReason
	}{
		{
			name:   "complete lead",
			mutate: func(l *LeadRecord) {},
			want:   DecisionFinal,
		},
		{
			name:       "missing name",
			mutate:     func(l *LeadRecord) { l.FullName = "" },
			want:       DecisionAbandoned,
			wantReason: ReasonMissingName,
		},
		{
			name:       "missing subject",
			mutate:     func(l *LeadRecord) { l.Subject = "" },
			want:       DecisionAbandoned,
			wantReason: ReasonMissingSubject,
		},
		{
			name:       "subject below threshold",
			mutate:     func(l *LeadRecord) { l.Subject = "boiler broken" },
			want:       DecisionAbandoned,
			wantReason: ReasonMissingSubject,
		},
		{
			name:     "short intent subject passes",
			mutate:   func(l *LeadRecord) { l.Subject = "call back" },
			withheld: true,
			want:     DecisionFinal,
		},
		{
			name:       "missing callback withheld caller",
			mutate:     func(l *LeadRecord) { l.CallbackToNumber = "" },
			withheld:   true,
			want:       DecisionAbandoned,
			wantReason: ReasonMissingCallback,
		},
		{
			name:   "caller id supplies callback",
			mutate: func(l *LeadRecord) { l.CallbackToNumber = "" },
			caller: "+14155550123",
			want:   DecisionFinal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := complete()
			tt.mutate(lead)
			got := Decide(lead, tt.caller, tt.withheld, "+1")
			if got != tt.want {
				t.Fatalf("Decide = %v, want %v", got, tt.want)
			}
			if lead.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", lead.Reason, tt.wantReason)
			}
		})
	}
}

// TestWithheldCallerEndToEnd is the full extraction scenario: self-introduced
// name, a call-back request, and a spoken local number on an anonymous call.
func TestWithheldCallerEndToEnd(t *testing.T) {
	x := NewExtractor(true, "+1")
	x.Apply("Hi, my name is John Smith")
	x.Apply("Please call me back")
	x.Apply("My number is 415 555 0123")

	lead := x.Lead()
	if lead.FullName != "John Smith" {
		t.Errorf("FullName = %q", lead.FullName)
	}
	if lead.Subject != "Please call me back" {
		t.Errorf("Subject = %q", lead.Subject)
	}
	if lead.CallbackToNumber != "+14155550123" {
		t.Errorf("CallbackToNumber = %q, want +14155550123", lead.CallbackToNumber)
	}

	if got := Decide(lead, "", true, "+1"); got != DecisionFinal {
		t.Errorf("Decide = %v, want FINAL (reason %q)", got, lead.Reason)
	}
}
