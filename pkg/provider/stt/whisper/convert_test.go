package whisper

import (
	"math"
	"testing"
)

func TestPCMToFloat32(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pcm  []byte
		want []float32
	}{
		{
			name: "empty input",
			pcm:  nil,
			want: []float32{},
		},
		{
			name: "zero sample",
			pcm:  []byte{0x00, 0x00},
			want: []float32{0},
		},
		{
			name: "max positive",
			pcm:  []byte{0xFF, 0x7F},
			want: []float32{32767.0 / 32768.0},
		},
		{
			name: "max negative",
			pcm:  []byte{0x00, 0x80},
			want: []float32{-1.0},
		},
		{
			name: "trailing odd byte ignored",
			pcm:  []byte{0x00, 0x00, 0xAB},
			want: []float32{0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := pcmToFloat32(tt.pcm)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d samples, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(float64(got[i]-tt.want[i])) > 1e-6 {
					t.Errorf("sample %d: got %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
