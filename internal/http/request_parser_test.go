package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestBodyParser_Get(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		key      string
		want     string
		wantJSON bool
	}{
		{
			name:     "json string",
			body:     `{"projectName": "  Tower A  "}`,
			key:      "projectName",
			want:     "Tower A",
			wantJSON: true,
		},
		{
			name:     "json number",
			body:     `{"progress": 42.5}`,
			key:      "progress",
			want:     "42.5",
			wantJSON: true,
		},
		{
			name:     "json missing key",
			body:     `{"other": "x"}`,
			key:      "projectName",
			want:     "",
			wantJSON: true,
		},
		{
			name: "form encoded",
			body: "projectName=Tower+B&progress=10",
			key:  "projectName",
			want: "Tower B",
		},
		{
			name: "control characters dropped",
			body: "name=a%00b%07c",
			key:  "name",
			want: "abc",
		},
		{
			name: "empty body",
			body: "",
			key:  "projectName",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			p := NewRequestBodyParser(req)
			if err := p.Parse(); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := p.Get(tt.key); got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
			if p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON() = %v, want %v", p.IsJSON(), tt.wantJSON)
			}
		})
	}
}

func TestRequestBodyParser_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	p := NewRequestBodyParser(req)

	err := p.Parse()
	if !errors.Is(err, errBadRequest) {
		t.Fatalf("Parse() error = %v, want errBadRequest", err)
	}
	// Parsing is done once.
	if err2 := p.Parse(); err2 != err {
		t.Errorf("second Parse() = %v, want %v", err2, err)
	}
}

func TestRequestBodyParser_Decode(t *testing.T) {
	t.Run("json object", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"id":"x","progress":"25"}`))
		var body updateIncomeBody
		if err := NewRequestBodyParser(req).Decode(&body); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if body.ID != "x" || body.Progress != 25 {
			t.Errorf("Decode() = %+v", body)
		}
	})

	t.Run("form body is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("id=x"))
		var body updateIncomeBody
		err := NewRequestBodyParser(req).Decode(&body)
		if !errors.Is(err, errBadRequest) {
			t.Fatalf("Decode() error = %v, want errBadRequest", err)
		}
	})

	t.Run("wrong type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"id": 5}`))
		var body updateIncomeBody
		err := NewRequestBodyParser(req).Decode(&body)
		if !errors.Is(err, errBadRequest) {
			t.Fatalf("Decode() error = %v, want errBadRequest", err)
		}
	})
}

func TestRequestBodyParser_Float(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("progress=abc&empty="))
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Float("progress"); !errors.Is(err, errBadRequest) {
		t.Errorf("Float(progress) error = %v, want errBadRequest", err)
	}
	if v, err := p.Float("empty"); err != nil || v != 0 {
		t.Errorf("Float(empty) = %v, %v; want 0, nil", v, err)
	}
}

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: `12.5`, want: 12.5},
		{in: `"40"`, want: 40},
		{in: `" 7 "`, want: 7},
		{in: `""`, want: 0},
		{in: `null`, want: 0},
		{in: `"abc"`, wantErr: true},
		{in: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f flexFloat
			err := json.Unmarshal([]byte(tt.in), &f)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && float64(f) != tt.want {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, f, tt.want)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{name: "direct", remoteAddr: "203.0.113.7:5555", want: "203.0.113.7"},
		{name: "untrusted forwarder ignored", remoteAddr: "203.0.113.7:5555", xff: "198.51.100.1", want: "203.0.113.7"},
		{name: "trusted proxy xff", remoteAddr: "10.0.0.2:80", xff: "198.51.100.1, 10.0.0.2", want: "198.51.100.1"},
		{name: "trusted proxy x-real-ip", remoteAddr: "127.0.0.1:80", xri: "198.51.100.9", want: "198.51.100.9"},
		{name: "invalid xff falls back", remoteAddr: "192.168.1.1:80", xff: "not-an-ip", want: "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
