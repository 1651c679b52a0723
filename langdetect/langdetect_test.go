package langdetect

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantCode string
		wantName string
	}{
		{"empty", "", "auto", ""},
		{"whitespace only", "   \n\t", "auto", ""},
		{"english", "The quick brown fox jumps over the lazy dog near the river bank.", "en", "English"},
		{"german", "Das ist ein ganz gewöhnlicher deutscher Satz über das Wetter heute.", "de", "German"},
		{"russian", "Это самое обычное русское предложение о погоде за окном.", "ru", "Russian"},
		{"chinese", "这是一个关于今天天气情况的普通中文句子。", "zh", "Chinese"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, name := Detect(tt.text)
			if code != tt.wantCode {
				t.Errorf("Detect() code = %q, want %q", code, tt.wantCode)
			}
			if name != tt.wantName {
				t.Errorf("Detect() name = %q, want %q", name, tt.wantName)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"en", "English"},
		{"ja", "Japanese"},
		{"pt", "Portuguese"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := DisplayName(tt.code); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
