package audio

import "testing"

func TestIdentify(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"mp3 sync FB", []byte{0xFF, 0xFB, 0x90, 0x00}, MP3},
		{"mp3 sync F3", []byte{0xFF, 0xF3, 0x00}, MP3},
		{"id3", append([]byte("ID3"), 0x03, 0x00), MP3WithID3},
		{"opus", []byte("OpusHead\x01\x02"), Opus},
		{"aac adif", []byte("ADIF\x00"), AACADIF},
		{"aac adts F1", []byte{0xFF, 0xF1, 0x00}, AACADTS},
		{"aac adts F9", []byte{0xFF, 0xF9, 0x00}, AACADTS},
		{"flac", []byte("fLaC\x00"), FLAC},
		{"wav", append([]byte("RIFF\x00\x00\x00\x00"), []byte("WAVE")...), WAV},
		{"unknown pcm", []byte{0x01, 0x02, 0x03, 0x04}, Unknown},
		{"too short", []byte{0xFF}, Unknown},
		{"empty", nil, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Identify(tt.data); got != tt.want {
				t.Fatalf("Identify(%v) = %q, want %q", tt.data, got, tt.want)
			}
		})
	}
}
