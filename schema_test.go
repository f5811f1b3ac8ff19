package mcp_test

import (
	"encoding/json"
	"testing"

	mcp "github.com/tidemill/go-mcp"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		name     string
		level    mcp.LogLevel
		expected string
	}{
		{
			name:     "debug level",
			level:    mcp.LogLevelDebug,
			expected: "debug",
		},
		{
			name:     "info level",
			level:    mcp.LogLevelInfo,
			expected: "info",
		},
		{
			name:     "notice level",
			level:    mcp.LogLevelNotice,
			expected: "notice",
		},
		{
			name:     "warning level",
			level:    mcp.LogLevelWarning,
			expected: "warning",
		},
		{
			name:     "error level",
			level:    mcp.LogLevelError,
			expected: "error",
		},
		{
			name:     "critical level",
			level:    mcp.LogLevelCritical,
			expected: "critical",
		},
		{
			name:     "alert level",
			level:    mcp.LogLevelAlert,
			expected: "alert",
		},
		{
			name:     "emergency level",
			level:    mcp.LogLevelEmergency,
			expected: "emergency",
		},
		{
			name:     "unknown level",
			level:    mcp.LogLevel(999),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLogLevelMarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		level   mcp.LogLevel
		want    string
		wantErr bool
	}{
		{
			name:  "known level",
			level: mcp.LogLevelWarning,
			want:  `"warning"`,
		},
		{
			name:    "unknown level",
			level:   mcp.LogLevel(999),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Marshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLogLevelUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    mcp.LogLevel
		wantErr bool
	}{
		{
			name:  "debug",
			input: `"debug"`,
			want:  mcp.LogLevelDebug,
		},
		{
			name:  "emergency",
			input: `"emergency"`,
			want:  mcp.LogLevelEmergency,
		},
		{
			name:    "unknown name",
			input:   `"verbose"`,
			wantErr: true,
		},
		{
			name:    "not a string",
			input:   `3`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var level mcp.LogLevel
			err := json.Unmarshal([]byte(tt.input), &level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && level != tt.want {
				t.Errorf("Unmarshal() = %v, want %v", level, tt.want)
			}
		})
	}
}

func TestLogLevelRoundTrip(t *testing.T) {
	levels := []mcp.LogLevel{
		mcp.LogLevelDebug,
		mcp.LogLevelInfo,
		mcp.LogLevelNotice,
		mcp.LogLevelWarning,
		mcp.LogLevelError,
		mcp.LogLevelCritical,
		mcp.LogLevelAlert,
		mcp.LogLevelEmergency,
	}

	for _, level := range levels {
		data, err := json.Marshal(level)
		if err != nil {
			t.Fatalf("failed to marshal %v: %v", level, err)
		}

		var decoded mcp.LogLevel
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("failed to unmarshal %s: %v", data, err)
		}

		if decoded != level {
			t.Errorf("round trip of %v produced %v", level, decoded)
		}
	}
}
