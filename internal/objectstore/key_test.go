package objectstore

import "testing"

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"s3://bucket/logs/a.log", "logs/a.log"},
		{"oss://bucket/dir/sub/obj", "dir/sub/obj"},
		{"mem://scratch/obj", "obj"},
		{"s3://bucket", ""},
		{"/logs/a.log", "logs/a.log"},
		{"logs/a.log", "logs/a.log"},
		{"gs://bucket/obj", "gs://bucket/obj"},
	}
	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
