package porcupine

import "testing"

func TestNewFactoryValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		keywords []string
		wantErr  bool
	}{
		{name: "empty access key", key: "", keywords: []string{"porcupine"}, wantErr: true},
		{name: "no keywords", key: "k", keywords: nil, wantErr: true},
		{name: "unknown built-in", key: "k", keywords: []string{"definitely-not-a-keyword"}, wantErr: true},
		{name: "built-in keyword", key: "k", keywords: []string{"porcupine"}},
		{name: "keyword file", key: "k", keywords: []string{"/models/hey-chantey_en_linux_v3_0_0.ppn"}},
		{name: "mixed built-in and file", key: "k", keywords: []string{"porcupine", "custom.ppn"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewFactory(tt.key, tt.keywords)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewFactory error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewFactorySensitivityCount(t *testing.T) {
	t.Parallel()

	_, err := NewFactory("k", []string{"porcupine"}, WithSensitivities([]float32{0.5, 0.7}))
	if err == nil {
		t.Fatal("mismatched sensitivity count: want error, got nil")
	}
}

func TestKeywordNames(t *testing.T) {
	t.Parallel()

	f, err := NewFactory("k", []string{"/models/hey-chantey_en_linux_v3_0_0.ppn"})
	if err != nil {
		t.Fatal(err)
	}
	if len(f.names) != 1 || f.names[0] != "hey-chantey" {
		t.Errorf("names = %v, want [hey-chantey]", f.names)
	}
}

func TestKeywordFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{path: "hey-chantey_en_linux_v3_0_0.ppn", want: "hey-chantey"},
		{path: "/opt/models/Jarvis_en_mac.ppn", want: "jarvis"},
		{path: "plain.ppn", want: "plain"},
	}
	for _, tt := range tests {
		if got := keywordFileName(tt.path); got != tt.want {
			t.Errorf("keywordFileName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestClosedDetectorRejectsProcess(t *testing.T) {
	t.Parallel()

	d := &Detector{closed: true}
	if _, err := d.Process(make([]int16, 512)); err == nil {
		t.Fatal("Process on closed detector: want error, got nil")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close on closed detector: %v", err)
	}
}

func TestBuiltInFromNameNormalises(t *testing.T) {
	t.Parallel()

	got, err := builtInFromName("  Porcupine ")
	if err != nil {
		t.Fatalf("builtInFromName: %v", err)
	}
	if string(got) != "porcupine" {
		t.Errorf("got %q, want %q", got, "porcupine")
	}

	if _, err := builtInFromName("nope"); err == nil {
		t.Error("unknown keyword: want error")
	}
}
